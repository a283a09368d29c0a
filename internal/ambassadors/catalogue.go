package ambassadors

import (
	"slices"
	"strings"
)

type IUCN struct {
	// ID is the Red List taxon id, 0 for domestic animals.
	ID     int
	Status string
}

type Ambassador struct {
	Name       string
	Alternate  []string
	Species    string
	Scientific string
	// Class is the lowercase Latin class name, see Classification.
	Class   string
	IUCN    IUCN
	Native  string
	Sex     string
	Birth   string // partial date, see FormatPartialDate
	Arrival string
	// Enclosure is a key into Enclosures.
	Enclosure string
	Story     string
	Mission   string
	Retired   bool
}

type Enclosure struct {
	Name        string
	Description string
}

// Relation is how an Animal Quest episode relates to an ambassador.
type Relation string

const (
	RelationFeatured Relation = "featured"
	RelationRelated  Relation = "related"
)

type Episode struct {
	Number  int
	Edition string
	VideoID string
	// Featured ambassadors are the episode's subject; Related ones appear.
	Featured []string
	Related  []string
}

// EpisodeRef is an episode as seen from one ambassador's page.
type EpisodeRef struct {
	Episode
	Relation Relation
}

var Enclosures = map[string]Enclosure{
	"pasture": {
		Name:        "Pasture",
		Description: "Open grazing with a run-in shelter, shared by the hoofed and the flightless.",
	},
	"reptileRoom": {
		Name:        "Reptile Room",
		Description: "Heated vivaria with individually tuned humidity and UVB lighting.",
	},
	"aviary": {
		Name:        "Aviary",
		Description: "A walk-through flight enclosure with indoor roosting.",
	},
	"bugHouse": {
		Name:        "Bug House",
		Description: "Terraria for invertebrates, visible from the classroom.",
	},
}

// Catalogue maps camelCase keys to ambassadors.
var Catalogue = map[string]Ambassador{
	"stompyTheEmu": {
		Name:       "Stompy",
		Alternate:  []string{"Stompy the Emu"},
		Species:    "Emu",
		Scientific: "Dromaius novaehollandiae",
		Class:      "aves",
		IUCN:       IUCN{ID: 22678117, Status: IUCNLeastConcern},
		Native:     "Australia",
		Sex:        "Male",
		Birth:      "2020-04",
		Arrival:    "2020-07-11",
		Enclosure:  "pasture",
		Story:      "Stompy was hand raised after his clutch was abandoned and never learned to be wary of people.",
		Mission:    "He shows visitors how flightless birds thrive in dry, open country.",
	},
	"georgie": {
		Name:       "Georgie",
		Species:    "African Bullfrog",
		Scientific: "Pyxicephalus adspersus",
		Class:      "amphibia",
		IUCN:       IUCN{ID: 58535, Status: IUCNLeastConcern},
		Native:     "Sub-Saharan Africa",
		Sex:        "Male",
		Birth:      "2018",
		Arrival:    "2019-05",
		Enclosure:  "reptileRoom",
		Story:      "Georgie came from a household that could no longer care for him.",
		Mission:    "He teaches how amphibians survive drought by burrowing and waiting for rain.",
	},
	"siren": {
		Name:       "Siren",
		Species:    "Blue-and-yellow Macaw",
		Scientific: "Ara ararauna",
		Class:      "aves",
		IUCN:       IUCN{ID: 22685539, Status: IUCNLeastConcern},
		Native:     "South America",
		Sex:        "Female",
		Birth:      "2004",
		Arrival:    "2021-02-14",
		Enclosure:  "aviary",
		Story:      "Siren was surrendered after twenty years as a pet and is learning to fly again.",
		Mission:    "She shows why parrots are lifelong commitments and are poorly suited to the pet trade.",
	},
	"noodle": {
		Name:       "Noodle",
		Species:    "Ball Python",
		Scientific: "Python regius",
		Class:      "reptilia",
		IUCN:       IUCN{ID: 177562, Status: IUCNNearThreatened},
		Native:     "West and Central Africa",
		Birth:      "2016",
		Arrival:    "2022-09",
		Enclosure:  "reptileRoom",
		Story:      "Noodle was found in a storage unit and arrived underweight.",
		Mission:    "Noodle helps visitors get comfortable with snakes and learn about wild collection for the pet trade.",
	},
	"milton": {
		Name:       "Milton",
		Species:    "Madagascar Hissing Cockroach",
		Scientific: "Gromphadorhina portentosa",
		Class:      "insecta",
		IUCN:       IUCN{Status: IUCNNotEvaluated},
		Native:     "Madagascar",
		Enclosure:  "bugHouse",
		Story:      "Milton is the longest-lived of our classroom colony.",
		Mission:    "He shows the role decomposers play in a forest floor.",
	},
	"winnie": {
		Name:       "Winnie",
		Species:    "Domestic Donkey",
		Scientific: "Equus asinus",
		Class:      "mammalia",
		IUCN:       IUCN{Status: IUCNNotEvaluated},
		Native:     "Domesticated",
		Sex:        "Female",
		Birth:      "2001",
		Arrival:    "2017-03",
		Enclosure:  "pasture",
		Story:      "Winnie kept the pasture in order for six years.",
		Mission:    "She taught visitors about working animals in retirement.",
		Retired:    true,
	},
}

// Episodes is the Animal Quest series, in release order.
var Episodes = []Episode{
	{Number: 1, Edition: "Emus of the Outback", VideoID: "a1B2c3D4e5F", Featured: []string{"stompyTheEmu"}},
	{Number: 2, Edition: "Waiting for Rain", VideoID: "Zq9_xW8-vU7", Featured: []string{"georgie"}, Related: []string{"noodle"}},
	{Number: 3, Edition: "Parrots Are Forever", VideoID: "Kk3LmN0pQr2", Featured: []string{"siren"}, Related: []string{"stompyTheEmu"}},
}

// IsActive reports whether key names an ambassador with a page.
func IsActive(key string) bool {
	a, ok := Catalogue[key]
	return ok && !a.Retired
}

// ActiveKeys returns the keys of ambassadors with pages, sorted.
func ActiveKeys() []string {
	keys := make([]string, 0, len(Catalogue))
	for k, a := range Catalogue {
		if !a.Retired {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Lookup resolves a URL name like "stompy-the-emu" to an active ambassador.
func Lookup(name string) (string, Ambassador, bool) {
	if name == "" || name != strings.ToLower(name) {
		return "", Ambassador{}, false
	}
	key := KebabToCamel(name)
	// "stompy--the-emu" maps to the same key; only the canonical slug is served
	if CamelToKebab(key) != name || !IsActive(key) {
		return "", Ambassador{}, false
	}
	return key, Catalogue[key], true
}

// EpisodesFor lists the Animal Quest episodes key appears in.
func EpisodesFor(key string) []EpisodeRef {
	var out []EpisodeRef
	for _, e := range Episodes {
		switch {
		case slices.Contains(e.Featured, key):
			out = append(out, EpisodeRef{Episode: e, Relation: RelationFeatured})
		case slices.Contains(e.Related, key):
			out = append(out, EpisodeRef{Episode: e, Relation: RelationRelated})
		}
	}
	return out
}

// Path is the profile URL path for key.
func Path(key string) string {
	return "/ambassadors/" + CamelToKebab(key)
}
