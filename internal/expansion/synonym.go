package expansion

// Expander proposes extra codes for a query's symptom list.
type Expander interface {
	Expand(symptoms []string) []string
}

// SynonymExpander adds the herbs that the dictionary says treat the query's
// symptoms.
type SynonymExpander struct {
	herbsBySymptom map[string][]string
}

// NewSynonymExpander indexes the dictionary by symptom, keeping only herbs
// that occur in known, the codes of the fold's training corpus (see CodeSet).
func NewSynonymExpander(d *Dictionary, known map[string]struct{}) *SynonymExpander {
	idx := make(map[string][]string)
	for _, e := range d.Entries {
		if _, ok := known[e.Herb]; !ok {
			continue
		}
		idx[e.Symptom] = append(idx[e.Symptom], e.Herb)
	}
	return &SynonymExpander{herbsBySymptom: idx}
}

// Expand returns the union of herbs mapped from symptoms, in first-seen
// order.
func (s *SynonymExpander) Expand(symptoms []string) []string {
	seen := make(map[string]struct{})
	var herbs []string
	for _, sym := range symptoms {
		for _, h := range s.herbsBySymptom[sym] {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			herbs = append(herbs, h)
		}
	}
	return herbs
}
