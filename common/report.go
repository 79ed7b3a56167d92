package common

// SceneResult is the outcome of one scene of one area.
type SceneResult struct {
	SceneID  string `json:"scene_id"`
	Status   Status `json:"status"`
	Raster   string `json:"raster,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	Message  string `json:"message,omitempty"`
}

// AOIResult is the outcome of one area of interest.
type AOIResult struct {
	Prefix  string        `json:"prefix"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Scenes  []SceneResult `json:"scenes,omitempty"`
}

// Report aggregates the per-area results of a run. A failed scene or area
// never aborts the run; it is recorded here instead.
type Report struct {
	AOIs []AOIResult `json:"aois"`
}

// Failed reports whether any area failed (an empty result set is a success).
func (r Report) Failed() bool {
	for _, a := range r.AOIs {
		if a.Status == StatusFAILED {
			return true
		}
	}
	return false
}

// Artifacts returns the artifacts written during the run.
func (r Report) Artifacts() []OutputArtifact {
	var artifacts []OutputArtifact
	for _, a := range r.AOIs {
		for _, s := range a.Scenes {
			if s.Status == StatusDONE {
				artifacts = append(artifacts, OutputArtifact{
					AOIPrefix:    a.Prefix,
					SceneID:      s.SceneID,
					RasterName:   s.Raster,
					MetadataName: s.Metadata,
				})
			}
		}
	}
	return artifacts
}
