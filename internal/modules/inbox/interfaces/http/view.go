package http

import (
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/application"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"
)

type ItemView struct {
	domain.Notification
	Presentation domain.Presentation `json:"presentation"`
}

// View is what UI surfaces render: the items with display attributes and
// the badge counts derived from the same snapshot.
type View struct {
	Items          []ItemView            `json:"items"`
	UnreadCount    int                   `json:"unread_count"`
	UnreadBySource map[domain.Source]int `json:"unread_by_source"`
	Version        uint64                `json:"version"`
	FailedSources  []domain.Source       `json:"failed_sources,omitempty"`
	Error          string                `json:"error,omitempty"`
}

func NewView(snap application.Snapshot) View {
	items := make([]ItemView, 0, len(snap.Items))
	for _, n := range snap.Items {
		items = append(items, ItemView{Notification: n, Presentation: domain.Adapt(n)})
	}
	return View{
		Items:          items,
		UnreadCount:    snap.UnreadCount,
		UnreadBySource: snap.UnreadBySource(),
		Version:        snap.Version,
	}
}
