package stream

import (
	"fmt"
	"sort"
	"strings"
)

// MutationKind names a mutation variant.
type MutationKind string

const (
	MutationStop         MutationKind = "stop"
	MutationPause        MutationKind = "pause"
	MutationResume       MutationKind = "resume"
	MutationAddOutput    MutationKind = "add_output"
	MutationRemoveOutput MutationKind = "remove_output"
	MutationUpdate       MutationKind = "update"
)

// Mutation is a control instruction carried by a barrier. The set of variants
// is closed to this package; actors only need to know whether a mutation is
// Stop, every other variant is passed through to the operators and sinks.
type Mutation interface {
	Kind() MutationKind
	String() string
	isMutation()
}

// IsStop reports whether m is a Stop mutation. A nil mutation is not Stop.
func IsStop(m Mutation) bool {
	if m == nil {
		return false
	}
	_, ok := m.(Stop)
	return ok
}

// Stop tells every actor that receives it to finish after the barrier.
type Stop struct{}

func (Stop) Kind() MutationKind { return MutationStop }
func (Stop) String() string     { return "Stop" }
func (Stop) isMutation()        {}

// Pause asks sources to stop emitting data until a Resume arrives.
type Pause struct{}

func (Pause) Kind() MutationKind { return MutationPause }
func (Pause) String() string     { return "Pause" }
func (Pause) isMutation()        {}

// Resume undoes a Pause.
type Resume struct{}

func (Resume) Kind() MutationKind { return MutationResume }
func (Resume) String() string     { return "Resume" }
func (Resume) isMutation()        {}

// AddOutput attaches new downstream inputs to dispatchers. Outputs is keyed
// by the downstream actor id.
type AddOutput struct {
	Outputs map[uint32]chan<- Message
}

func (AddOutput) Kind() MutationKind { return MutationAddOutput }
func (m AddOutput) String() string {
	ids := make([]uint32, 0, len(m.Outputs))
	for id := range m.Outputs {
		ids = append(ids, id)
	}
	return fmt.Sprintf("AddOutput%v", sortedIDs(ids))
}
func (AddOutput) isMutation() {}

// RemoveOutput detaches downstream actors from dispatchers.
type RemoveOutput struct {
	ActorIDs []uint32
}

func (RemoveOutput) Kind() MutationKind { return MutationRemoveOutput }
func (m RemoveOutput) String() string {
	return fmt.Sprintf("RemoveOutput%v", sortedIDs(append([]uint32(nil), m.ActorIDs...)))
}
func (RemoveOutput) isMutation() {}

// Update carries new operator configuration, applied by operators that know
// the keys.
type Update struct {
	Config map[string]string
}

func (Update) Kind() MutationKind { return MutationUpdate }
func (m Update) String() string {
	keys := make([]string, 0, len(m.Config))
	for k := range m.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "Update[" + strings.Join(keys, ",") + "]"
}
func (Update) isMutation() {}

func sortedIDs(ids []uint32) []uint32 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
