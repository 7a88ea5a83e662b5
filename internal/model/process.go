package model

// ProcessName identifies a production or delivery process. The set is closed:
// only names in processCatalog are accepted.
type ProcessName string

const (
	// ProcessDraft marks the placeholder step an order starts with
	ProcessDraft ProcessName = "draft"

	ProcessCutting    ProcessName = "cutting"
	ProcessEmbroidery ProcessName = "embroidery"
	ProcessPrinting   ProcessName = "printing"
	ProcessSewing     ProcessName = "sewing"
	ProcessQCSewing   ProcessName = "qc_sewing"
	ProcessWashing    ProcessName = "washing"
	ProcessIroning    ProcessName = "ironing"
	ProcessFinalQC    ProcessName = "final_qc"
	ProcessPacking    ProcessName = "packing"

	ProcessWarehouse ProcessName = "warehouse"
	ProcessShipping  ProcessName = "shipping"
	ProcessDelivered ProcessName = "delivered"
)

const (
	PhaseProduction = "production"
	PhaseDelivery   = "delivery"
)

const (
	DeptPPIC       = "PPIC"
	DeptCutting    = "Cutting"
	DeptEmbroidery = "Embroidery"
	DeptPrinting   = "Printing"
	DeptSewing     = "Sewing"
	DeptQC         = "Quality Control"
	DeptWashing    = "Washing"
	DeptFinishing  = "Finishing"
	DeptPacking    = "Packing"
	DeptWarehouse  = "Warehouse"
	DeptShipping   = "Shipping"
)

// ProcessDefinition describes one entry of the process catalogue
type ProcessDefinition struct {
	Name       ProcessName   `json:"name"`
	Label      string        `json:"label"`
	Phase      string        `json:"phase"`
	Department string        `json:"department"`
	Successors []ProcessName `json:"successors"`
}

// firstProcess is the only legal first assignment of an order
const firstProcess = ProcessCutting

// processOrder lists the catalogue in display order
var processOrder = []ProcessName{
	ProcessCutting, ProcessEmbroidery, ProcessPrinting, ProcessSewing, ProcessQCSewing,
	ProcessWashing, ProcessIroning, ProcessFinalQC, ProcessPacking,
	ProcessWarehouse, ProcessShipping, ProcessDelivered,
}

var processCatalog = map[ProcessName]ProcessDefinition{
	ProcessCutting: {
		Name: ProcessCutting, Label: "Cutting", Phase: PhaseProduction, Department: DeptCutting,
		Successors: []ProcessName{ProcessEmbroidery, ProcessPrinting, ProcessSewing},
	},
	ProcessEmbroidery: {
		Name: ProcessEmbroidery, Label: "Embroidery", Phase: PhaseProduction, Department: DeptEmbroidery,
		Successors: []ProcessName{ProcessPrinting, ProcessSewing},
	},
	ProcessPrinting: {
		Name: ProcessPrinting, Label: "Printing", Phase: PhaseProduction, Department: DeptPrinting,
		Successors: []ProcessName{ProcessEmbroidery, ProcessSewing},
	},
	ProcessSewing: {
		Name: ProcessSewing, Label: "Sewing", Phase: PhaseProduction, Department: DeptSewing,
		Successors: []ProcessName{ProcessQCSewing},
	},
	// QC can send goods back to sewing for rework
	ProcessQCSewing: {
		Name: ProcessQCSewing, Label: "QC Sewing", Phase: PhaseProduction, Department: DeptQC,
		Successors: []ProcessName{ProcessWashing, ProcessIroning, ProcessSewing},
	},
	ProcessWashing: {
		Name: ProcessWashing, Label: "Washing", Phase: PhaseProduction, Department: DeptWashing,
		Successors: []ProcessName{ProcessIroning},
	},
	ProcessIroning: {
		Name: ProcessIroning, Label: "Ironing", Phase: PhaseProduction, Department: DeptFinishing,
		Successors: []ProcessName{ProcessFinalQC},
	},
	ProcessFinalQC: {
		Name: ProcessFinalQC, Label: "Final QC", Phase: PhaseProduction, Department: DeptQC,
		Successors: []ProcessName{ProcessPacking, ProcessIroning, ProcessSewing},
	},
	ProcessPacking: {
		Name: ProcessPacking, Label: "Packing", Phase: PhaseProduction, Department: DeptPacking,
		Successors: []ProcessName{ProcessWarehouse},
	},
	ProcessWarehouse: {
		Name: ProcessWarehouse, Label: "Finished Goods Warehouse", Phase: PhaseDelivery, Department: DeptWarehouse,
		Successors: []ProcessName{ProcessShipping},
	},
	ProcessShipping: {
		Name: ProcessShipping, Label: "Shipping", Phase: PhaseDelivery, Department: DeptShipping,
		Successors: []ProcessName{ProcessDelivered},
	},
	ProcessDelivered: {
		Name: ProcessDelivered, Label: "Delivered", Phase: PhaseDelivery, Department: DeptShipping,
	},
}

// LookupProcess returns the catalogue entry for name
func LookupProcess(name ProcessName) (ProcessDefinition, bool) {
	def, ok := processCatalog[name]
	return def, ok
}

// IsValid reports whether p is an assignable process
func (p ProcessName) IsValid() bool {
	_, ok := processCatalog[p]
	return ok
}

// CanFollow reports whether next may be assigned after prev. An empty prev
// means the order has no completed process yet.
func CanFollow(prev, next ProcessName) bool {
	if prev == "" || prev == ProcessDraft {
		return next == firstProcess
	}
	def, ok := processCatalog[prev]
	if !ok {
		return false
	}
	for _, s := range def.Successors {
		if s == next {
			return true
		}
	}
	return false
}

// IsEndOfProduction reports whether completing p finishes the production phase
func IsEndOfProduction(p ProcessName) bool {
	return p == ProcessPacking
}

// ProcessCatalog returns every process definition in flow order
func ProcessCatalog() []ProcessDefinition {
	out := make([]ProcessDefinition, 0, len(processOrder))
	for _, name := range processOrder {
		out = append(out, processCatalog[name])
	}
	return out
}
