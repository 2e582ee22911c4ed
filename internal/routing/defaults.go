package routing

// Stock collections.
const (
	CollectionAgents               CollectionID = "bali_zero_agents"
	CollectionVisa                 CollectionID = "visa_oracle"
	CollectionKBLI                 CollectionID = "kbli_eye"
	CollectionTaxKnowledge         CollectionID = "tax_knowledge"
	CollectionTaxUpdates           CollectionID = "tax_updates"
	CollectionLegalArchitect       CollectionID = "legal_architect"
	CollectionLegalUpdates         CollectionID = "legal_updates"
	CollectionPropertyKnowledge    CollectionID = "property_knowledge"
	CollectionPropertyListings     CollectionID = "property_listings"
	CollectionPricing              CollectionID = "bali_zero_pricing"
	CollectionTeam                 CollectionID = "bali_zero_team"
	CollectionBooks                CollectionID = "zantara_books"
	CollectionConversationExamples CollectionID = "conversation_examples"
)

func kw(terms ...string) []Keyword {
	out := make([]Keyword, len(terms))
	for i, t := range terms {
		out[i] = Keyword{Term: t}
	}
	return out
}

func strong(terms ...string) []Keyword {
	out := kw(terms...)
	for i := range out {
		out[i].Specific = true
	}
	return out
}

func join(groups ...[]Keyword) []Keyword {
	var out []Keyword
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	recencyModifiers = kw(
		"latest", "update", "updates", "updated", "recent", "recently", "new", "news",
		"change", "changes", "changed", "amendment", "announcement", "this year",
		"2024", "2025", "2026", "terbaru", "baru", "ultimi", "novità",
	)
	explainModifiers = kw(
		"how to", "how do", "how does", "calculate", "calculation", "explain", "what is",
		"what are the rules", "definition", "meaning", "formula", "rate", "rates",
		"example", "guide", "requirements", "procedure", "cara", "come si",
	)
)

// DefaultSpec returns the stock routing table covering the Bali Zero knowledge
// base. Keywords are English, Indonesian and Italian.
func DefaultSpec() Spec {
	return Spec{
		DefaultCollection: string(CollectionAgents),
		Weights:           DefaultWeights(),
		Domains: []Domain{
			{
				Name: "visa",
				Keywords: join(
					kw("visa", "visas", "immigration", "imigrasi", "stay permit", "overstay", "sponsor",
						"voa", "visa on arrival", "extension", "extend", "passport", "paspor", "permesso",
						"retirement visa", "investor visa", "digital nomad", "remote worker", "golden visa"),
					strong("kitas", "kitap", "itas", "itap", "b211", "b211a", "c312", "e33g", "e28a", "imta", "rptka"),
				),
			},
			{
				Name: "kbli",
				Keywords: join(
					kw("business license", "business licence", "license", "licence", "nib", "oss", "oss rba",
						"pt pma", "pma", "local pt", "company setup", "set up a company", "open a company",
						"business classification", "business field", "risk based", "izin usaha", "perizinan"),
					strong("kbli", "kbli code"),
				),
			},
			{
				Name: "tax",
				Keywords: join(
					kw("tax", "taxes", "taxation", "pajak", "tasse", "pph", "ppn", "vat", "npwp", "spt",
						"withholding", "income tax", "corporate tax", "tax return", "tax treaty",
						"double taxation", "tax resident", "dividend tax", "luxury tax", "djp", "coretax"),
					kw("pph 21", "pph 22", "pph 23", "pph 25", "pph 26", "pph 29", "pph 4(2)", "pp 55", "pp 23", "pmk 168"),
				),
			},
			{
				Name: "legal",
				Keywords: join(
					kw("law", "laws", "legal", "regulation", "regulations", "peraturan", "undang-undang",
						"legge", "contract", "notary", "notaris", "court", "lawsuit", "decree", "ministerial",
						"permen", "perpres", "omnibus", "cipta kerja", "labor law", "employment law",
						"marriage", "inheritance", "prenuptial", "power of attorney", "article"),
					kw("uu 6/2023", "uu 11/2020", "pp 28/2025", "pp 5/2021"),
				),
			},
			{
				Name: "property",
				Keywords: kw(
					"property", "properties", "real estate", "villa", "villas", "house", "houses", "home",
					"apartment", "land", "tanah", "rumah", "lease", "leasehold", "freehold", "hak pakai",
					"hak milik", "shm", "hgb", "shgb", "zoning", "pbg", "imb", "canggu", "seminyak", "ubud",
					"uluwatu", "sanur", "pererenan", "berawa", "jimbaran", "nusa dua",
				),
			},
			{
				Name: "pricing",
				Keywords: kw(
					"price", "prices", "pricing", "cost", "costs", "fee", "fees", "how much", "quote",
					"quotation", "package", "packages", "budget", "harga", "biaya", "prezzo", "quanto costa",
					"idr", "rupiah", "invoice",
				),
			},
			{
				Name: "team",
				Keywords: kw(
					"team", "staff", "colleague", "colleagues", "employee", "employees", "who is", "who works",
					"ceo", "founder", "manager", "consultant", "department", "contact person", "tim", "squadra",
				),
			},
			{
				Name: "books",
				Keywords: kw(
					"book", "books", "novel", "author", "chapter", "philosophy", "poetry", "poem", "literature",
					"library", "essay", "buku", "libro", "libri", "plato", "socrates", "sutra", "upanishad",
				),
			},
			{
				Name: "conversation",
				Keywords: kw(
					"conversation example", "example conversation", "sample conversation", "sample reply",
					"sample answer", "how would you reply", "how should i reply", "dialogue", "chat example",
					"tone of voice", "reply template",
				),
			},
		},
		Collections: []Collection{
			{
				ID:          string(CollectionAgents),
				Description: "General Bali Zero services and agent knowledge",
				Keywords:    kw("bali zero", "services", "service", "consultation", "appointment", "office", "opening hours"),
				Fallbacks:   []string{string(CollectionConversationExamples)},
			},
			{
				ID:          string(CollectionVisa),
				Domain:      "visa",
				Description: "Visa and immigration procedures",
				Fallbacks:   []string{string(CollectionLegalArchitect), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionKBLI),
				Domain:      "kbli",
				Description: "KBLI business classification and licensing",
				Fallbacks:   []string{string(CollectionLegalArchitect), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionTaxKnowledge),
				Domain:      "tax",
				Description: "Indonesian tax rules and calculations",
				Modifiers:   explainModifiers,
				Fallbacks:   []string{string(CollectionTaxUpdates), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionTaxUpdates),
				Domain:      "tax",
				Description: "Recent tax regulation changes",
				Modifiers:   recencyModifiers,
				Fallbacks:   []string{string(CollectionTaxKnowledge), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionLegalArchitect),
				Domain:      "legal",
				Description: "Indonesian legal framework",
				Modifiers:   explainModifiers,
				Fallbacks:   []string{string(CollectionLegalUpdates), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionLegalUpdates),
				Domain:      "legal",
				Description: "Recent legal and regulatory changes",
				Modifiers:   recencyModifiers,
				Fallbacks:   []string{string(CollectionLegalArchitect), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionPropertyKnowledge),
				Domain:      "property",
				Description: "Property ownership, leasing and zoning rules",
				Modifiers: join(explainModifiers, kw("ownership", "own", "can foreigners", "foreigner",
					"nominee", "legal", "due diligence", "title", "certificate")),
				Fallbacks: []string{string(CollectionLegalArchitect), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionPropertyListings),
				Domain:      "property",
				Description: "Properties currently on the market",
				Modifiers: kw("for sale", "sale", "for rent", "rent", "rental", "listing", "listings", "available",
					"buy", "buying", "dijual", "disewakan", "vendita", "affitto", "bedroom", "bedrooms", "sqm"),
				Fallbacks: []string{string(CollectionPropertyKnowledge), string(CollectionAgents)},
			},
			{
				ID:          string(CollectionPricing),
				Domain:      "pricing",
				Description: "Bali Zero service prices",
				Fallbacks:   []string{string(CollectionAgents)},
			},
			{
				ID:          string(CollectionTeam),
				Domain:      "team",
				Description: "Bali Zero team members",
				Fallbacks:   []string{string(CollectionAgents)},
			},
			{
				ID:          string(CollectionBooks),
				Domain:      "books",
				Description: "Philosophy and literature library",
				Fallbacks:   []string{string(CollectionAgents)},
			},
			{
				ID:          string(CollectionConversationExamples),
				Domain:      "conversation",
				Description: "Example conversations used for tone and style",
				Fallbacks:   []string{string(CollectionAgents)},
			},
		},
	}
}
