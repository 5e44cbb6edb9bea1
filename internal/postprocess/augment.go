package postprocess

import (
	"fmt"
	"strings"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
)

// Disclaimer is appended to replies that touch on medical topics.
const Disclaimer = "_This information is general guidance, not medical advice. " +
	"Please consult a pharmacist or doctor, and contact emergency services if symptoms are severe._"

const nearbyHeading = "**Pharmacies near you:**"

const maxSuggestions = 3

// medicalTerms is the keyword taxonomy, matched as case-insensitive substrings.
var medicalTerms = map[string][]string{
	"diagnosis":   {"diagnos"},
	"treatment":   {"treatment", "therapy"},
	"dosage":      {"dosage", "dose", "mg ", "milligram"},
	"symptom":     {"symptom", "fever", "nausea", "dizz"},
	"emergency":   {"emergency", "overdose", "chest pain", "unconscious", "911"},
	"side effect": {"side effect", "adverse", "interaction", "contraindicat"},
	"condition":   {"allerg", "pregnan", "chronic", "infection"},
}

// MedicalTopics returns the taxonomy categories text touches on.
func MedicalTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for _, category := range []string{"diagnosis", "treatment", "dosage", "symptom", "emergency", "side effect", "condition"} {
		for _, term := range medicalTerms[category] {
			if strings.Contains(lower, term) {
				topics = append(topics, category)
				break
			}
		}
	}
	return topics
}

// Augment links product mentions and, when the reply touches on a medical
// topic, appends the disclaimer (once) and a block of nearby pharmacies.
// It runs once per generated reply, before the reply is persisted.
func Augment(text string, cc *domain.ConversationContext) string {
	if cc == nil {
		cc = &domain.ConversationContext{}
	}
	out := AutoLink(text, cc.ProductInfo)
	if len(MedicalTopics(text)) == 0 {
		return out
	}
	if !strings.Contains(out, Disclaimer) {
		out = strings.TrimRight(out, "\n") + "\n\n" + Disclaimer
	}
	if block := NearbyBlock(cc); block != "" {
		out += "\n\n" + block
	}
	return out
}

// NearbyBlock lists up to three pharmacies, preferring the distance-ranked
// nearest list and falling back to the first context pharmacies when no
// distances are known. It is empty when there are none.
func NearbyBlock(cc *domain.ConversationContext) string {
	candidates := cc.NearestPharmacies
	if len(candidates) == 0 {
		candidates = cc.PharmacyInfo
	}
	if len(candidates) == 0 {
		return ""
	}
	lines := []string{nearbyHeading}
	for _, p := range candidates[:min(maxSuggestions, len(candidates))] {
		lines = append(lines, FormatPharmacy(p))
	}
	return strings.Join(lines, "\n")
}

// FormatPharmacy renders "• [Name](url) (verified) — 1.2 km — address".
func FormatPharmacy(p domain.PharmacySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "• [%s](%s)", LinkLabel(p.Name), p.URL)
	if p.Verified {
		b.WriteString(" (verified)")
	}
	b.WriteString(" — ")
	if p.DistanceKm != nil {
		fmt.Fprintf(&b, "%.1f km", *p.DistanceKm)
	} else {
		b.WriteString("nearby")
	}
	if addr := strings.TrimSpace(p.Address); addr != "" {
		b.WriteString(" — ")
		b.WriteString(addr)
	}
	return b.String()
}
