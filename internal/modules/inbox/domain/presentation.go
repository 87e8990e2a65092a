package domain

// Presentation holds the display attributes of a notification.
type Presentation struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var defaultPresentation = Presentation{Color: "blue", Icon: "info-circle", Label: "Info"}

var presentations = map[Severity]Presentation{
	SeverityWarning: {Color: "yellow", Icon: "triangle", Label: "Warning"},
	SeverityDanger:  {Color: "orange", Icon: "shield", Label: "Danger"},
	SeverityExtreme: {Color: "red", Icon: "triangle-filled", Label: "Extreme"},
}

// Adapt maps a notification's severity to its display attributes. Missing,
// info and unknown severities share the info mapping.
func Adapt(n Notification) Presentation {
	if p, ok := presentations[n.Severity]; ok {
		return p
	}
	return defaultPresentation
}
