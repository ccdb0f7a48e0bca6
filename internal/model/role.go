package model

import "fmt"

// Role 使用者角色，由驗證層的 role claim 解析而來
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Capability 集中定義的權限，取代散落各處的角色字串比較
type Capability int

const (
	CapBookTickets Capability = iota
	CapCreateEvent
	CapReviewEvent
)

var capabilities = map[Role][]Capability{
	RoleUser:      {CapBookTickets},
	RoleOrganizer: {CapCreateEvent},
	RoleAdmin:     {CapCreateEvent, CapReviewEvent},
}

func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := capabilities[role]; !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Can 角色是否擁有該權限
func (r Role) Can(c Capability) bool {
	for _, allowed := range capabilities[r] {
		if allowed == c {
			return true
		}
	}
	return false
}

func (c Capability) String() string {
	switch c {
	case CapBookTickets:
		return "book_tickets"
	case CapCreateEvent:
		return "create_event"
	case CapReviewEvent:
		return "review_event"
	}
	return "unknown"
}
