package stateio

// Accounting parameter names.  These are the vocabulary shared by the national
// table, the pipeline, and the CGE build step; the strings are part of the
// output contract.
const (
	IntermediateDemand = "Intermediate_Demand"
	IntermediateSupply = "Intermediate_Supply"
	ValueAdded         = "Value_Added"
	LaborDemand        = "Labor_Demand"
	CapitalDemand      = "Capital_Demand"
	OutputTax          = "Output_Tax"
	Investment         = "Investment"
	PersonalConsump    = "Personal_Consumption"
	HouseholdSupply    = "Household_Supply"
	GovernmentDemand   = "Government_Demand"
	Export             = "Export"
	Reexport           = "Reexport"
	Import             = "Import"
	MarginDemand       = "Margin_Demand"
	MarginSupply       = "Margin_Supply"
	Duty               = "Duty"
	Tax                = "Tax"
	Subsidy            = "Subsidy"
	LocalDemand        = "Local_Demand"
	NationalDemand     = "National_Demand"
	LocalMarginSupply  = "Local_Margin_Supply"
	NatlMarginSupply   = "National_Margin_Supply"
)

// Core set names.
const (
	SetSector    = "sector"
	SetCommodity = "commodity"
	SetMargin    = "margin"
	SetRegion    = "region"
	SetYear      = "year"
	SetParameter = "parameter"
)

// Final-demand collapse elements: commodities of investment and government
// final demand are folded into a single column each.
const (
	ElemInvest = "invest"
	ElemGovern = "govern"
)

// StandardSets returns the sets every regional table declares up front.
func StandardSets() []Set {
	return []Set{
		{Name: SetSector, Domain: DomCol, Desc: "producing activities"},
		{Name: SetCommodity, Domain: DomRow, Desc: "goods and services"},
		{Name: SetMargin, Domain: DomCol, Desc: "trade and transport margins"},
		{Name: SetRegion, Domain: DomRegion, Desc: "US states plus DC"},
		{Name: SetYear, Domain: DomYear, Desc: "calendar years"},
		{Name: SetParameter, Domain: DomParameter, Desc: "accounting parameters"},
	}
}

// RegionElements returns the 51-state region elements.
func RegionElements() []Element {
	var out []Element
	for _, st := range States() {
		out = append(out, Element{Name: st, Sets: []string{SetRegion}})
	}

	return out
}

// ParameterElements declares params as members of the parameter set.
func ParameterElements(params ...string) []Element {
	var out []Element
	for _, p := range params {
		out = append(out, Element{Name: p, Sets: []string{SetParameter}})
	}

	return out
}
