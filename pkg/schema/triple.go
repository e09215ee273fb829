package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadFilename is returned for file names that parse as neither an entity
// kind nor a relation triple. This is a fatal naming error, not a skippable
// condition.
var ErrBadFilename = errors.New("unrecognized entity or relation file name")

// Triple identifies one relation table by (source kind, label, target kind).
type Triple struct {
	Src   string
	Label string
	Tgt   string
}

// Name returns the canonical "src_label_tgt" file stem for the triple.
func (t Triple) Name() string {
	return fmt.Sprintf("%s_%s_%s", t.Src, t.Label, t.Tgt)
}

func (t Triple) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", t.Src, t.Label, t.Tgt)
}

// ParseFilename classifies a dataset file stem. The grammar: split on "_";
// exactly one token is an entity kind; three or more tokens form a relation
// triple where the first token is the source kind, the last is the target
// kind, and the middle tokens joined by "_" are the label. Any other token
// count is an error.
//
// The stem must not carry an extension; callers strip ".csv" first.
func ParseFilename(stem string) (kind string, triple Triple, isRel bool, err error) {
	tokens := strings.Split(stem, "_")
	switch {
	case stem == "":
		return "", Triple{}, false, fmt.Errorf("%w: empty name", ErrBadFilename)
	case len(tokens) == 1:
		return stem, Triple{}, false, nil
	case len(tokens) >= 3:
		triple = Triple{
			Src:   tokens[0],
			Label: strings.Join(tokens[1:len(tokens)-1], "_"),
			Tgt:   tokens[len(tokens)-1],
		}
		return "", triple, true, nil
	default:
		return "", Triple{}, false, fmt.Errorf("%w: %q", ErrBadFilename, stem)
	}
}
