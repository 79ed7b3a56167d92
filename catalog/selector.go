package catalog

import (
	"sort"

	"github.com/geofetch/s2fetch/common"
)

// SequenceScenes orders the scenes by acquisition date and assigns each one
// its position among the scenes acquired the same UTC calendar day. The result
// does not depend on the retrieval order: within a day, scenes are ordered by
// acquisition time, then by scene id for identical timestamps.
func SequenceScenes(scenes []common.SceneRecord) []common.SequencedScene {
	sorted := make([]common.SceneRecord, len(scenes))
	copy(sorted, scenes)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].SceneID < sorted[j].SceneID
	})

	sequenced := make([]common.SequencedScene, len(sorted))
	seq := 0
	for i, scene := range sorted {
		if i > 0 && !scene.Day().Equal(sorted[i-1].Day()) {
			seq = 0
		} else if i > 0 {
			seq++
		}
		sequenced[i] = common.SequencedScene{SceneRecord: scene, SeqIndex: seq}
	}
	return sequenced
}
