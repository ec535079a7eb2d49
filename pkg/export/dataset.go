package export

// Column describes one exported column. Weight sizes the column relative to
// the others in PDF output; zero counts as one.
type Column struct {
	Key    string
	Label  string
	Weight float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Notes   []string
	Columns []Column
	Rows    []map[string]string
}

func (c Column) header() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

func (c Column) weight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}
