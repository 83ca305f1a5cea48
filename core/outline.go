package core

// Section is a heading-delimited slice of the policy body.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Text    string `json:"text"`
}

// Heading is a single heading found in the body.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is a hyperlink found in the body.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// OutlineStructure counts the structural elements of a policy body.
type OutlineStructure struct {
	Headings  []Heading `json:"headings"`
	Links     []Link    `json:"links"`
	Tables    int       `json:"tables"`
	Lists     int       `json:"lists"`
	ListItems int       `json:"list_items"`
	Images    int       `json:"images"`
}

// PolicyOutline is the outline JSON rendition of one policy.
type PolicyOutline struct {
	Source    string           `json:"source"`
	Metadata  Metadata         `json:"metadata"`
	Text      string           `json:"text"`
	Markdown  string           `json:"markdown"`
	Sections  []Section        `json:"sections"`
	Structure OutlineStructure `json:"structure"`
}
