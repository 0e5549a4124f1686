package domain

// Distortions lists the labels offered on the Examine card, in display order.
var Distortions = []string{
	"A prediction",
	"A worst-case scenario",
	"An assumption",
	"A feeling disguised as a fact",
}

// IsDistortion reports whether label is one of the offered labels.
func IsDistortion(label string) bool {
	for _, d := range Distortions {
		if d == label {
			return true
		}
	}
	return false
}
