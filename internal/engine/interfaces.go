package engine

// Progress receives block scoring progress. Calls are serialized by the engine.
type Progress interface {
	Start(total int)
	Advance(blockKey string, resumed bool)
	Finish()
}

type noopProgress struct{}

func (noopProgress) Start(int)            {}
func (noopProgress) Advance(string, bool) {}
func (noopProgress) Finish()              {}
