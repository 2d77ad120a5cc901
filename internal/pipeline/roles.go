package pipeline

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

// Roles names the caller's variable roles. Clustering and Display may overlap.
type Roles struct {
	Clustering []string
	Display    []string
	Score      string
}

// roleSets is the typed view of Roles resolved against one dataset. It is
// computed once per run and handed to every stage.
type roleSets struct {
	clustering  dataset.Set
	display     dataset.Set
	all         dataset.Set
	categorical dataset.Set
	numeric     dataset.Set
	score       string
}

// resolveRoles checks that every clustering and display variable exists and
// splits them by kind. All unknown names are reported together.
func resolveRoles(ds *dataset.Dataset, r Roles) (roleSets, error) {
	rs := roleSets{
		clustering: dataset.NewSet(trimAll(r.Clustering)...),
		display:    dataset.NewSet(trimAll(r.Display)...),
		score:      strings.TrimSpace(r.Score),
	}
	rs.all = rs.clustering.Union(rs.display)

	var merr *multierror.Error
	var cat, num []string
	for _, name := range rs.all.Slice() {
		c := ds.Column(name)
		if c == nil {
			merr = multierror.Append(merr, fmt.Errorf("unknown column %q", name))
			continue
		}
		if c.Kind == dataset.Categorical {
			cat = append(cat, name)
		} else {
			num = append(num, name)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return rs, &InvalidInputError{Reason: "clustering and display variables must exist in the dataset", Err: err}
	}
	rs.categorical = dataset.NewSet(cat...)
	rs.numeric = dataset.NewSet(num...)
	return rs, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
