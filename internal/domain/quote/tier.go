package quote

// LoadSpace describes the cargo area of a vehicle tier.
type LoadSpace struct {
	Length  string `json:"length"`
	Width   string `json:"width"`
	Height  string `json:"height"`
	Payload string `json:"payload"`
}

// Tier is a vehicle class with its own base price and per-mile overage rate.
// The catalog is fixed at build time.
type Tier struct {
	Name         string    `json:"name"`
	BasePrice    float64   `json:"base_price"`
	PerMileRate  float64   `json:"per_mile_rate"`
	OnDemandOnly bool      `json:"on_demand_only"`
	LoadSpace    LoadSpace `json:"load_space"`
}

var catalog = []Tier{
	{
		Name:        "Small Van",
		BasePrice:   75,
		PerMileRate: 2.2,
		LoadSpace: LoadSpace{
			Length:  "1.8m/180cm",
			Width:   "1.57m/157cm",
			Height:  "1.2m/120cm",
			Payload: "836-937kg",
		},
	},
	{
		Name:        "Transit / SWB Van",
		BasePrice:   85,
		PerMileRate: 2.5,
		LoadSpace: LoadSpace{
			Length:  "1.8m/180cm",
			Width:   "1.57m/157cm",
			Height:  "1.21m/121cm",
			Payload: "836-937kg",
		},
	},
	{
		Name:        "Medium Van",
		BasePrice:   85,
		PerMileRate: 2.7,
		LoadSpace: LoadSpace{
			Length:  "2.53m/253cm",
			Width:   "1.66m/166cm",
			Height:  "1.38m/138cm",
			Payload: "1122-1266kg",
		},
	},
	{
		Name:        "Xlwb Van",
		BasePrice:   95,
		PerMileRate: 2.9,
		LoadSpace: LoadSpace{
			Length:  "4.1m/410cm",
			Width:   "1.87m/187cm",
			Height:  "3.92m/392cm",
			Payload: "1340-1900kg",
		},
	},
	{
		Name:         "Luton Van",
		BasePrice:    95,
		PerMileRate:  2.9,
		OnDemandOnly: true,
		LoadSpace: LoadSpace{
			Length:  "4.15m/415cm",
			Width:   "2.1m/210cm",
			Height:  "2.23m/223cm",
			Payload: "979-1147kg",
		},
	},
}

// Catalog returns the full vehicle tier catalog.
func Catalog() []Tier {
	tiers := make([]Tier, len(catalog))
	copy(tiers, catalog)
	return tiers
}

// TierByName looks up a tier by its display name.
func TierByName(name string) (Tier, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}
