package ingest

// Canonical column names. Everything downstream of NormalizeColumns
// addresses columns through these; the raw vocabularies never leak past
// ingress.
const (
	ColStepNumber    = "step_number"
	ColStepType      = "step_type"
	ColStepName      = "step_name"
	ColStatus        = "status"
	ColDateTime      = "date_time"
	ColExecutionTime = "execution_time"
	ColVoltage       = "voltage"
	ColCurrent       = "current"
	ColTemperature   = "temperature"
	ColCapacity      = "capacity"
	ColEnergy        = "energy"
	ColStateOfCharge = "state_of_charge"
)

// columnAlias maps one source-specific header to its canonical name.
type columnAlias struct {
	alt       string
	canonical string
}

// columnAliases is the fixed translation table, applied once at ingress.
// The first block is the English (Arbin-style) vocabulary, the second the
// bilingual (Neware-style) vocabulary. Order matters: an earlier alias wins
// because a canonical column is never overwritten once present.
var columnAliases = []columnAlias{
	// English vocabulary
	{"Step_Index", ColStepNumber},
	{"Step_Type", ColStepType},
	{"Step_Name", ColStepName},
	{"Status", ColStatus},
	{"Date_Time", ColDateTime},
	{"Step_Time", ColExecutionTime},
	{"Voltage", ColVoltage},
	{"Current", ColCurrent},
	{"Aux_Temperature", ColTemperature},
	{"Capacity", ColCapacity},
	{"Energy", ColEnergy},
	{"SOC", ColStateOfCharge},

	// Bilingual vocabulary
	{"工步号", ColStepNumber},
	{"工步类型", ColStepType},
	{"工步名称", ColStepName},
	{"工步状态", ColStatus},
	{"记录时间", ColDateTime},
	{"工步执行时间(秒)", ColExecutionTime},
	{"电压(V)", ColVoltage},
	{"电流(A)", ColCurrent},
	{"辅助温度(℃)", ColTemperature},
	{"充电量(Ah)", ColCapacity},
	{"能量(Wh)", ColEnergy},
}

// NormalizeColumns renames source-specific headers to canonical names in
// place and returns the same frame. A column is renamed only when the
// canonical name is absent and the alternate is present; an existing
// canonical column is never overwritten. Unmapped columns pass through
// unchanged.
func NormalizeColumns(f *Frame) *Frame {
	for _, alias := range columnAliases {
		if f.HasColumn(alias.canonical) {
			continue
		}
		f.Rename(alias.alt, alias.canonical)
	}
	return f
}
