package renditions

import "strings"

// HeightTolerance is how far a rendition's height may exceed the source height
// before it is dropped from the selected set. Keeps 1088-line sources eligible
// for 1080p output.
const HeightTolerance = 16

// Select picks the rendition set to produce for one job.
//
// Requested labels restrict the ladder when they name a non-empty subset;
// unknown labels and the "auto" / subtitle-only sentinels are ignored. When the
// source height is known (> 0), renditions taller than height+tolerance are
// dropped, except that the smallest configured rendition is always retained
// when the cut would empty the set. The result is sorted ascending by
// (height, width) and is never empty for a non-empty ladder.
func Select(ladder []Rendition, requested []string, sourceHeight int) []Rendition {
	if len(ladder) == 0 {
		return nil
	}

	set := restrictToRequested(ladder, requested)

	if sourceHeight > 0 {
		kept := make([]Rendition, 0, len(set))
		for _, r := range set {
			if r.Height <= sourceHeight+HeightTolerance {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			kept = append(kept, smallest(ladder))
		}
		set = kept
	}

	out := make([]Rendition, len(set))
	copy(out, set)
	SortAscending(out)
	return out
}

func restrictToRequested(ladder []Rendition, requested []string) []Rendition {
	wanted := make(map[string]struct{}, len(requested))
	for _, label := range requested {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" || label == AutoLabel || label == SubtitleOnlyLabel {
			continue
		}
		wanted[label] = struct{}{}
	}
	if len(wanted) == 0 {
		return ladder
	}
	subset := make([]Rendition, 0, len(wanted))
	for _, r := range ladder {
		if _, ok := wanted[strings.ToLower(r.Name)]; ok {
			subset = append(subset, r)
		}
	}
	if len(subset) == 0 {
		return ladder
	}
	return subset
}

func smallest(ladder []Rendition) Rendition {
	min := ladder[0]
	for _, r := range ladder[1:] {
		if r.Height < min.Height || (r.Height == min.Height && r.Width < min.Width) {
			min = r
		}
	}
	return min
}
