package model

// Sector names one of the fixed cognitive categories a Memory can be filed
// under. The set is closed at process startup: config declares the sector
// table once and it does not change for the life of the process.
type Sector string

const (
	SectorSemantic   Sector = "semantic"
	SectorEmotional  Sector = "emotional"
	SectorProcedural Sector = "procedural"
	SectorEpisodic   Sector = "episodic"
	SectorReflective Sector = "reflective"
)

// DefaultSectorOrder is the declared tie-break order used by the rule-based
// classifier: on a scoring tie, the earlier sector in this list wins.
var DefaultSectorOrder = []Sector{
	SectorSemantic,
	SectorEmotional,
	SectorProcedural,
	SectorEpisodic,
	SectorReflective,
}

// SectorConfig carries the per-sector tunables declared in the sector table:
// decay rate, fusion weight and embedding dimension.
type SectorConfig struct {
	DecayLambda   float64
	FusionWeight  float64
	Dim           int
}

// SectorTable maps every known sector (including additional domain sectors
// declared in config) to its tunables.
type SectorTable map[Sector]SectorConfig

// DefaultSectorTable returns the built-in five-sector table with reasonable
// defaults; callers may extend or override it via config.
func DefaultSectorTable() SectorTable {
	return SectorTable{
		SectorSemantic:   {DecayLambda: 0.02, FusionWeight: 1.0, Dim: 768},
		SectorEmotional:  {DecayLambda: 0.05, FusionWeight: 0.8, Dim: 768},
		SectorProcedural: {DecayLambda: 0.015, FusionWeight: 0.9, Dim: 768},
		SectorEpisodic:   {DecayLambda: 0.08, FusionWeight: 0.7, Dim: 768},
		SectorReflective: {DecayLambda: 0.03, FusionWeight: 0.85, Dim: 768},
	}
}
