package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pders01/likesync/internal/likes"
	"github.com/pders01/likesync/internal/storage"
)

// Engine provides intelligent search without heavy indexing
type Engine struct {
	ledger storage.Ledger
}

// NewEngine creates a new search engine
func NewEngine(ledger storage.Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Search scans every favorite in the ledger
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	favorites, err := LoadFavorites(context.Background(), e.ledger)
	if err != nil {
		return nil, err
	}

	results := []*Result{}
	for _, fav := range favorites {
		if result := e.searchFavorite(fav, terms); result != nil {
			results = append(results, result)
		}
	}

	// Sort by relevance score (highest first)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// searchFavorite scores a single favorite
func (e *Engine) searchFavorite(fav *likes.Favorite, terms []string) *Result {
	var matches []Match
	var totalScore float64

	if textScore := e.scoreField(fav.Text, terms, 3.0); textScore > 0 {
		matches = append(matches, Match{
			Field:  "text",
			Text:   e.findBestSnippet(fav.Text, terms, 160),
			Weight: textScore,
		})
		totalScore += textScore
	}

	if authorScore := e.scoreField(fav.ScreenName, terms, 2.0); authorScore > 0 {
		matches = append(matches, Match{
			Field:  "screen_name",
			Text:   fav.ScreenName,
			Weight: authorScore,
		})
		totalScore += authorScore
	}

	if names := strings.Join(fav.Filenames(), " "); names != "" {
		if fileScore := e.scoreField(names, terms, 0.5); fileScore > 0 {
			matches = append(matches, Match{
				Field:  "filename",
				Text:   truncate(names, 100),
				Weight: fileScore,
			})
			totalScore += fileScore
		}
	}

	if totalScore > 0 {
		return &Result{
			Favorite: fav,
			Score:    totalScore,
			Matches:  matches,
		}
	}

	return nil
}

// scoreField calculates relevance score for a field
func (e *Engine) scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		termLower := strings.ToLower(term)

		// Exact phrase match (highest score)
		if strings.Contains(lower, termLower) {
			score += 2.0
			matchedTerms++
		}

		// Word boundary matches (medium score)
		for _, word := range words {
			switch {
			case word == termLower:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, termLower) || strings.HasSuffix(word, termLower):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, termLower):
				score += 0.5
				matchedTerms++
			}
		}
	}

	// Boost score if multiple terms match
	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	// Apply TF-IDF-like scoring
	tf := float64(matchedTerms) / float64(len(words))
	score *= (1.0 + math.Log(1.0+tf))

	return score * weight
}

// findBestSnippet finds the most relevant text snippet containing search terms
func (e *Engine) findBestSnippet(text string, terms []string, maxLength int) string {
	if text == "" {
		return ""
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	bestScore := 0.0
	bestStart := 0
	windowSize := maxLength / 8 // Approximate words in snippet

	if windowSize > len(words) {
		return truncate(text, maxLength)
	}

	for i := 0; i <= len(words)-windowSize; i++ {
		windowText := strings.ToLower(strings.Join(words[i:i+windowSize], " "))
		score := 0.0

		for _, term := range terms {
			if strings.Contains(windowText, strings.ToLower(term)) {
				score += 1.0
			}
		}

		if score > bestScore {
			bestScore = score
			bestStart = i
		}
	}

	snippet := strings.Join(words[bestStart:bestStart+windowSize], " ")
	return truncate(snippet, maxLength)
}

// tokenize breaks text into searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 { // Skip single chars
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}

// truncate limits text length with ellipsis
func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-1] + "…"
}
