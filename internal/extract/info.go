package extract

// GarmentInfo is the structured record produced from recognized tag
// text. The JSON field names are the wire format the lookup service
// expects. Optional string fields are empty when no line matched their
// rule; Price is nil when no price line parsed.
type GarmentInfo struct {
	RawText      string            `json:"raw_text"`
	ProductCode  string            `json:"product_code,omitempty"`
	Name         string            `json:"name,omitempty"`
	Size         string            `json:"size,omitempty"`
	Color        string            `json:"color,omitempty"`
	Price        *float64          `json:"price,omitempty"`
	Materials    map[string]int    `json:"materials,omitempty"`
	Measurements map[string]string `json:"measurements,omitempty"`
}

// IsEmpty reports whether no field beyond the raw text was extracted.
func (g GarmentInfo) IsEmpty() bool {
	return g.ProductCode == "" && g.Name == "" && g.Size == "" && g.Color == "" &&
		g.Price == nil && len(g.Materials) == 0 && len(g.Measurements) == 0
}
