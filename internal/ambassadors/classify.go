package ambassadors

import "strconv"

// IUCN Red List categories.
const (
	IUCNNotEvaluated         = "NE"
	IUCNDataDeficient        = "DD"
	IUCNLeastConcern         = "LC"
	IUCNNearThreatened       = "NT"
	IUCNVulnerable           = "VU"
	IUCNEndangered           = "EN"
	IUCNCriticallyEndangered = "CR"
	IUCNExtinctInWild        = "EW"
	IUCNExtinct              = "EX"
)

var iucnLabels = map[string]string{
	IUCNNotEvaluated:         "Not Evaluated",
	IUCNDataDeficient:        "Data Deficient",
	IUCNLeastConcern:         "Least Concern",
	IUCNNearThreatened:       "Near Threatened",
	IUCNVulnerable:           "Vulnerable",
	IUCNEndangered:           "Endangered",
	IUCNCriticallyEndangered: "Critically Endangered",
	IUCNExtinctInWild:        "Extinct in the Wild",
	IUCNExtinct:              "Extinct",
}

// IUCNStatus returns the label for a Red List code, or the code itself
// when it is not one.
func IUCNStatus(code string) string {
	if l, ok := iucnLabels[code]; ok {
		return l
	}
	return code
}

// IUCNURL links to the species' Red List assessment. Empty for id 0.
func IUCNURL(id int) string {
	if id <= 0 {
		return ""
	}
	return "https://apiv3.iucnredlist.org/api/v3/taxonredirect/" + strconv.Itoa(id)
}

var classLabels = map[string]string{
	"mammalia":     "Mammals",
	"aves":         "Birds",
	"reptilia":     "Reptiles",
	"amphibia":     "Amphibians",
	"arachnida":    "Arachnids",
	"insecta":      "Insects",
	"chilopoda":    "Centipedes",
	"malacostraca": "Crustaceans",
}

// Classification returns the display label for a taxonomic class.
func Classification(class string) string {
	if l, ok := classLabels[class]; ok {
		return l
	}
	return "Other"
}

// ClassificationAnchor is the fragment on /ambassadors for a class.
func ClassificationAnchor(class string) string {
	return "classification:" + SentenceToKebab(Classification(class))
}
