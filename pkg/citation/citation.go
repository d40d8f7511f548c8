// Package citation finds numeric citation markers in chunk text.
//
// A marker is a bracketed list of reference numbers such as [1], [3-4],
// [1, 5] or ［９］. Full-width brackets, digits and punctuation are folded to
// their half-width forms before parsing, so mixed-width markers resolve the
// same way as plain ASCII ones. Any other non-blank bracketed span, e.g. [abc],
// still counts as a marker; its tokens are rejected and logged.
package citation

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/types"
	"golang.org/x/text/width"
)

// MaxRangeSpan bounds the number of values a single range token may expand to.
const MaxRangeSpan = 1000

var (
	markerPattern   = regexp.MustCompile(`\[([^\[\]]*)\]`)
	refTopicPattern = regexp.MustCompile(`\[(\d+)\]`)

	// dashes that appear in place of a hyphen inside ranges
	dashReplacer = strings.NewReplacer("‐", "-", "‑", "-", "‒", "-", "–", "-", "−", "-")
)

// Citations is the result of resolving one text.
type Citations struct {
	// Numbers is the sorted, de-duplicated set of cited reference numbers.
	Numbers []int
	// Found is true when at least one non-blank marker matched, even if
	// nothing in it parsed.
	Found bool
	// Rejected holds marker tokens that could not be parsed.
	Rejected []string
}

// Resolver extracts citations from text.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver that logs rejected tokens to logger.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve extracts the set of reference numbers cited in text.
func (r *Resolver) Resolve(text string) Citations {
	var out Citations
	seen := make(map[int]struct{})

	for _, m := range markerPattern.FindAllStringSubmatch(normalize(text), -1) {
		if strings.TrimSpace(m[1]) == "" {
			continue
		}
		out.Found = true
		numbers, rejected := ParseList(m[1])
		for _, n := range numbers {
			seen[n] = struct{}{}
		}
		if len(rejected) > 0 {
			r.logger.Warn("Skipping malformed citation tokens", "marker", m[0], "tokens", rejected)
			out.Rejected = append(out.Rejected, rejected...)
		}
	}

	out.Numbers = make([]int, 0, len(seen))
	for n := range seen {
		out.Numbers = append(out.Numbers, n)
	}
	sort.Ints(out.Numbers)
	return out
}

// Resolve extracts citations using the default logger.
func Resolve(text string) Citations {
	return NewResolver(nil).Resolve(text)
}

// ParseList parses the body of one marker, e.g. "1, 3-4". It returns the
// numbers in the order they appear (ranges expanded) and any tokens it could
// not parse. Empty tokens are ignored. A range whose end is below its start
// yields nothing and is reported as rejected.
func ParseList(body string) ([]int, []string) {
	var numbers []int
	var rejected []string

	for _, part := range strings.Split(body, ",") {
		token := strings.Join(strings.Fields(part), "")
		if token == "" {
			continue
		}

		if !strings.Contains(token, "-") {
			n, err := strconv.Atoi(token)
			if err != nil || n < 0 {
				rejected = append(rejected, token)
				continue
			}
			numbers = append(numbers, n)
			continue
		}

		bounds := strings.Split(token, "-")
		if len(bounds) != 2 {
			rejected = append(rejected, token)
			continue
		}
		start, err1 := strconv.Atoi(bounds[0])
		end, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil || end < start || end-start >= MaxRangeSpan {
			rejected = append(rejected, token)
			continue
		}
		for n := start; n <= end; n++ {
			numbers = append(numbers, n)
		}
	}

	return numbers, rejected
}

// BuildReferenceIndex maps reference numbers to reference chunk ids using the
// first [n] marker in each chunk topic. Later chunks win on duplicate numbers.
func BuildReferenceIndex(refChunks []types.Chunk) types.ReferenceIndex {
	index := make(types.ReferenceIndex, len(refChunks))
	for _, chunk := range refChunks {
		if chunk.ID == "" {
			continue
		}
		m := refTopicPattern.FindStringSubmatch(normalize(chunk.Topic))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		index[n] = chunk.ID
	}
	return index
}

func normalize(s string) string {
	return dashReplacer.Replace(width.Narrow.String(s))
}
