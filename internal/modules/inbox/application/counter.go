package application

import "github.com/petcuddles/pet-cuddles/internal/modules/inbox/domain"

// CountUnread is the only source of an unread count; stores derive it on
// every snapshot rather than tracking it.
func CountUnread(items []domain.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

// CountUnreadBySource returns badge counts per feed. Sources with no unread
// items are omitted.
func CountUnreadBySource(items []domain.Notification) map[domain.Source]int {
	counts := make(map[domain.Source]int)
	for _, it := range items {
		if !it.Read {
			counts[it.Source]++
		}
	}
	return counts
}
