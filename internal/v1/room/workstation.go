package room

// workstationComputerIndex is the static seating table mapping a named
// workstation to one of the room's 5 computer slots (§4.F step 2). A real
// deployment's set of named seats is small and fixed per office layout, so
// this stays a compiled table rather than config.
var workstationComputerIndex = map[string]int{
	"design-studio":    0,
	"engineering-desk":  1,
	"product-corner":   2,
	"support-pod":      3,
	"exec-suite":       4,
}

// resolveComputerIndex returns the computer slot for a workstation id, or
// -1 if the workstation is unknown (the NPC is left unassigned).
func resolveComputerIndex(workstationID string) int {
	idx, ok := workstationComputerIndex[workstationID]
	if !ok {
		return -1
	}
	return idx
}
