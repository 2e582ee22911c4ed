package routing

import (
	"github.com/hyperjump/zantara/internal/models"
)

var (
	greetingPhrases = [][]string{
		{"hi"}, {"hello"}, {"hey"}, {"hiya"}, {"yo"}, {"ciao"}, {"salve"}, {"buongiorno"}, {"buonasera"},
		{"halo"}, {"hallo"}, {"hai"}, {"selamat", "pagi"}, {"selamat", "siang"}, {"selamat", "sore"},
		{"selamat", "malam"}, {"good", "morning"}, {"good", "afternoon"}, {"good", "evening"}, {"hola"},
		{"om", "swastiastu"},
	}
	casualPhrases = [][]string{
		{"how", "are", "you"}, {"how", "s", "it", "going"}, {"what", "s", "up"}, {"thanks"}, {"thank", "you"},
		{"thx"}, {"grazie"}, {"terima", "kasih"}, {"makasih"}, {"ok"}, {"okay"}, {"cool"}, {"great"},
		{"nice"}, {"bye"}, {"goodbye"}, {"see", "you"}, {"come", "stai"}, {"come", "va"},
		{"apa", "kabar"}, {"lol"}, {"haha"}, {"who", "are", "you"},
	}
	emergencyPhrases = [][]string{
		{"urgent"}, {"urgently"}, {"emergency"}, {"asap"}, {"darurat"}, {"urgente"}, {"emergenza"},
		{"arrested"}, {"detained"}, {"deported"}, {"deportation"}, {"police"}, {"stolen"},
		{"lost", "passport"}, {"passport", "stolen"}, {"overstayed"}, {"help", "me", "now"},
	}
)

// casualMaxTokens bounds how long a message can be and still be small talk.
const casualMaxTokens = 6

// ClassifyIntent guesses the query type of a message when the caller did not
// supply one. Emergency words win; short greetings and small talk without any
// domain keyword skip retrieval; everything else is business.
func (r *Router) ClassifyIntent(query string) models.QueryType {
	tokens := r.analyzer.Tokens(query)
	if len(tokens) == 0 {
		return models.QueryTypeCasual
	}
	if matchesAny(tokens, emergencyPhrases) {
		return models.QueryTypeEmergency
	}
	if len(tokens) > casualMaxTokens || len(r.Rank(query)) > 0 {
		return models.QueryTypeBusiness
	}
	if startsWithAny(tokens, greetingPhrases) {
		return models.QueryTypeGreeting
	}
	if matchesAny(tokens, casualPhrases) {
		return models.QueryTypeCasual
	}
	return models.QueryTypeBusiness
}

func matchesAny(tokens []string, phrases [][]string) bool {
	for _, p := range phrases {
		if containsSequence(tokens, p) {
			return true
		}
	}
	return false
}

func startsWithAny(tokens []string, phrases [][]string) bool {
	for _, p := range phrases {
		if len(p) <= len(tokens) && containsSequence(tokens[:len(p)], p) {
			return true
		}
	}
	return false
}
