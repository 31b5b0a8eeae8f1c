package panel

// KnownMass is the atomic mass of an element seen in every run
type KnownMass struct {
	Element string
	Mass    float64
}

// Atomic masses of elements that show up regardless of panel
const (
	MassSodium   = 22.99
	MassYttrium  = 88.91
	MassTantalum = 180.95
	MassGold     = 196.97
)

// KnownMasses returns the elements with well known masses
func KnownMasses() []KnownMass {
	return []KnownMass{
		{Element: "Na", Mass: MassSodium},
		{Element: "Y", Mass: MassYttrium},
		{Element: "Ta", Mass: MassTantalum},
		{Element: "Au", Mass: MassGold},
	}
}
