package feedback

import (
	"sort"
	"strings"

	"github.com/voicelab/echolot/pkg/models"
)

// topicKeywords maps each topic category to its lowercase match phrases.
// Classification counts phrase hits per topic and scores them against the
// text length, so a short text with one strong keyword still classifies.
var topicKeywords = map[string][]string{
	"Lieferproblem": {
		"lieferung", "liefern", "geliefert", "versand", "verspätung",
		"verspätet", "verzögerung", "nicht angekommen", "zustellung",
		"transport", "lieferzeit", "liefertermin", "lieferverzug", "verzug",
		"auslieferung", "wochen gewartet", "monate gewartet", "noch nicht da",
		"wann kommt", "wo bleibt", "lieferstatus", "sendungsverfolgung",
		"lieferengpass", "nachlieferung", "teillieferung", "nicht geliefert",
		"späte lieferung", "zu spät",
	},
	"Service": {
		"service", "kundenservice", "beratung", "beraten", "freundlich",
		"unfreundlich", "hilfsbereit", "kompetenz", "mitarbeiter", "personal",
		"bedienung", "ansprechpartner", "höflich", "unhöflich", "empfang",
		"kundenbetreuung", "verkäufer", "berater", "autohaus", "betreuung",
		"hotline", "professionell", "unprofessionell", "inkompetent",
		"schlecht beraten", "abgewimmelt", "zuvorkommend", "arrogant",
	},
	"Produktqualität": {
		"qualität", "defekt", "kaputt", "mangel", "mängel", "beschädigt",
		"fehlerhaft", "funktioniert nicht", "gebrochen", "riss", "kratzer",
		"verarbeitung", "schaden", "beschädigung", "lackschaden", "dellen",
		"rost", "klappert", "knarzt", "quietscht", "materialfehler",
		"fertigungsfehler", "verschlissen", "rückruf", "reklamation",
		"gewährleistung", "garantiefall",
	},
	"Preis": {
		"preis", "kosten", "teuer", "zu teuer", "überteuert", "rechnung",
		"bezahlung", "gebühr", "gebühren", "euro", "preisgestaltung",
		"preiswert", "günstig", "kostspielig", "aufschlag", "zusatzkosten",
		"preis-leistung", "wucher", "abzocke", "rabatt", "nachlass",
		"versteckte kosten", "aufpreis", "mehrkosten", "betrag",
	},
	"Terminvergabe": {
		"termin", "termine", "wartezeit", "warten", "gewartet",
		"terminvergabe", "buchung", "reservierung", "verfügbarkeit",
		"ausgebucht", "kein termin", "terminplanung", "zeitfenster",
		"terminvereinbarung", "terminabsage", "abgesagt", "verschoben",
		"warteschlange", "keine termine frei", "kurzfristig",
	},
	"Werkstatt": {
		"werkstatt", "reparatur", "repariert", "reparieren", "mechaniker",
		"inspektion", "wartung", "ölwechsel", "bremsen", "motor",
		"getriebe", "diagnose", "fehlersuche", "instandsetzung",
		"werkstatttermin", "hebebühne", "zahnriemen", "tüv", "hauptuntersuchung",
	},
	"Kommunikation": {
		"kommunikation", "rückruf", "zurückgerufen", "erreichbar",
		"erreichbarkeit", "niemand meldet", "nicht gemeldet", "keine antwort",
		"keine rückmeldung", "informiert", "information", "benachrichtigung",
		"e-mail", "telefonisch", "nicht erreicht", "auskunft",
		"niemand hat sich gemeldet",
	},
	"Fahrzeugübergabe": {
		"übergabe", "abholung", "abgeholt", "fahrzeugübergabe",
		"auslieferungstermin", "übergabetermin", "schlüsselübergabe",
		"einweisung", "bereitgestellt", "abholtermin",
	},
	"Probefahrt": {
		"probefahrt", "probegefahren", "testfahrt", "ausprobieren",
		"probe gefahren", "testen",
	},
	"Finanzierung": {
		"finanzierung", "leasing", "leasingangebot", "kredit", "rate",
		"raten", "anzahlung", "finanzierungsangebot", "leasingvertrag",
		"restwert", "zinsen",
	},
	"Ersatzwagen": {
		"ersatzwagen", "leihwagen", "ersatzfahrzeug", "leihfahrzeug",
		"mietwagen", "mobilität während",
	},
}

// topicConfidenceThreshold is the minimum score for a keyword topic to win
// over the fallback category.
const topicConfidenceThreshold = 0.3

// Topics returns all topic categories including the fallback, sorted by name.
func Topics() []string {
	out := make([]string, 0, len(topicKeywords)+1)
	for topic := range topicKeywords {
		out = append(out, topic)
	}
	out = append(out, models.TopicOther)
	sort.Strings(out)
	return out
}

// ClassifyTopic assigns a topic category by keyword matching. The
// confidence relates phrase hits to text length on a 0-1 scale; texts
// scoring below the threshold for every topic fall back to "Sonstiges"
// with confidence 0.
func ClassifyTopic(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return models.TopicOther, 0
	}

	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))
	if wordCount == 0 {
		return models.TopicOther, 0
	}

	bestTopic := models.TopicOther
	bestScore := 0.0
	for topic, keywords := range topicKeywords {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / max1(float64(wordCount)/10)
		if score > 1 {
			score = 1
		}
		// Ties resolve to the lexicographically smaller topic so the
		// classification stays deterministic across runs.
		if score > bestScore || (score == bestScore && topic < bestTopic) {
			bestTopic = topic
			bestScore = score
		}
	}

	if bestScore < topicConfidenceThreshold {
		return models.TopicOther, 0
	}
	return bestTopic, bestScore
}

func max1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}
