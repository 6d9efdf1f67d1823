package subtitles

import "sort"

// Reconcile normalizes a track set, deduplicates by (language, kind), caps it
// at MaxTracks, and sorts it default-first then by label. On a collision the
// track already flagged default wins, otherwise the first-seen track is kept.
// A non-empty result always has exactly one default track: if none survives,
// the first track after sorting is promoted.
func Reconcile(tracks []Track) []Track {
	deduped := make([]Track, 0, len(tracks))
	index := make(map[string]int, len(tracks))

	for _, raw := range tracks {
		track := Normalize(raw)
		at, seen := index[track.Key()]
		if !seen {
			index[track.Key()] = len(deduped)
			deduped = append(deduped, track)
			continue
		}
		if track.Default && !deduped[at].Default {
			deduped[at] = track
		}
	}

	sortTracks(deduped)
	ensureSingleDefault(deduped)
	sortTracks(deduped)

	// The default track sorts first, so truncation never removes it.
	if len(deduped) > MaxTracks {
		deduped = deduped[:MaxTracks]
	}
	return deduped
}

// Merge combines caller-supplied and machine-generated tracks with manual
// precedence: an auto track is dropped when a manual track already claims its
// (language, kind) identity, otherwise it fills the gap.
func Merge(manual, auto []Track) []Track {
	claimed := make(map[string]struct{}, len(manual))
	combined := make([]Track, 0, len(manual)+len(auto))
	for _, track := range manual {
		normalized := Normalize(track)
		claimed[normalized.Key()] = struct{}{}
		combined = append(combined, track)
	}
	for _, track := range auto {
		if _, taken := claimed[Normalize(track).Key()]; taken {
			continue
		}
		combined = append(combined, track)
	}
	return Reconcile(combined)
}

func ensureSingleDefault(tracks []Track) {
	if len(tracks) == 0 {
		return
	}
	defaultAt := -1
	for i := range tracks {
		if !tracks[i].Default {
			continue
		}
		if defaultAt == -1 {
			defaultAt = i
			continue
		}
		tracks[i].Default = false
	}
	if defaultAt == -1 {
		tracks[0].Default = true
	}
}

func sortTracks(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Default != tracks[j].Default {
			return tracks[i].Default
		}
		return tracks[i].Label < tracks[j].Label
	})
}
