package models

// SurveyRow is one raw record of the expectations survey as it comes out of a
// spreadsheet or file. Median is kept as text; rows whose median is not a number
// are metadata lines and get dropped by the projection builder.
type SurveyRow struct {
	Period    string `yaml:"period" json:"period"`
	Reference string `yaml:"reference" json:"reference"`
	Median    string `yaml:"median" json:"median"`
}
