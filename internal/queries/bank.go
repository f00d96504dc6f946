// Package queries holds the seed query bank: query families organized for
// systematic coverage of Brazilian businesses in the Boston metro area.
package queries

import "strings"

// Core food and business terms, suffixed with "Boston".
var foodTerms = []string{
	"Brazilian restaurant",
	"churrascaria",
	"Brazilian steakhouse",
	"Brazilian bakery",
	"padaria brasileira",
	"lanchonete brasileira",
	"Brazilian cafe",
	"Brazilian market",
	"mercado brasileiro",
	"Brazilian grocery",
	"Brazilian food",
	"feijoada",
	"picanha",
	"coxinha",
	"brigadeiro",
	"pão de queijo",
	"pao de queijo",
	"açaí",
	"acai",
	"pastelaria",
	"Brazilian pastry",
	"espetinho",
	"churrasco",
	"Brazilian buffet",
	"comida brasileira",
	"Brazilian pizza",
	"Brazilian juice bar",
}

// Service and non-food businesses, suffixed with "Boston".
var serviceTerms = []string{
	"Brazilian salon",
	"Brazilian hair salon",
	"Brazilian barbershop",
	"Brazilian owned business",
	"Brazilian travel agency",
	"Brazilian church",
	"Igreja brasileira",
	"Brazilian community center",
	"Brazilian clothing store",
	"Brazilian meat market",
	"Brazilian butcher",
	"Brazilian imports",
	"produtos brasileiros",
}

// Portuguese-language queries; these catch listings that are not optimized
// for English search and already include the city.
var portugueseTerms = []string{
	"restaurante brasileiro Boston",
	"mercado brasileiro Boston",
	"padaria brasileira Boston",
	"lanchonete brasileira Boston",
	"comida brasileira Boston",
	"churrascaria Boston",
	"salão brasileiro Boston",
	"sabor do Brasil Boston",
	"casa do Brasil Boston",
	"cantinho brasileiro Boston",
	"sabor mineiro Boston",
	"comida mineira Boston",
	"culinária brasileira Boston",
}

// Neighborhoods for geographic spread. Framingham, Marlborough, and Brockton
// have large Brazilian communities.
var neighborhoods = []string{
	"Allston",
	"Brighton",
	"East Boston",
	"Everett",
	"Chelsea",
	"Somerville",
	"Cambridge",
	"Medford",
	"Malden",
	"Revere",
	"Framingham",
	"Marlborough",
	"Dorchester",
	"Brookline",
	"Waltham",
	"Quincy",
	"Brockton",
	"Lowell",
}

// High-priority terms that get a variant per neighborhood.
var priorityTerms = []string{
	"Brazilian restaurant",
	"churrascaria",
	"Brazilian bakery",
	"mercado brasileiro",
	"padaria brasileira",
	"Brazilian market",
	"feijoada",
	"acai",
	"Brazilian owned",
}

// Seeds returns the full seed query list in a fixed order with
// case-insensitive duplicates removed.
func Seeds() []string {
	var out []string
	seen := make(map[string]bool)

	add := func(q string) {
		q = strings.TrimSpace(q)
		norm := strings.ToLower(q)
		if q != "" && !seen[norm] {
			seen[norm] = true
			out = append(out, q)
		}
	}

	for _, term := range foodTerms {
		add(term + " Boston")
	}
	for _, term := range serviceTerms {
		add(term + " Boston")
	}
	for _, term := range portugueseTerms {
		add(term)
	}
	for _, term := range priorityTerms {
		for _, hood := range neighborhoods {
			add(term + " " + hood)
		}
	}
	for _, hood := range neighborhoods {
		add("Brazilian " + hood)
		add("brasileiro " + hood)
	}

	return out
}

// Count returns the number of seed queries.
func Count() int {
	return len(Seeds())
}
