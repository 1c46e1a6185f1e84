package dto

type AnalyzeRequest struct {
	Timezone string `json:"timezone"`
}

// ListQuery is the paging pair shared by list endpoints.
type ListQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

type CampaignListQuery struct {
	ListQuery
	Status string `query:"status"`
}

type PostListQuery struct {
	ListQuery
	From     string `query:"from"`
	To       string `query:"to"`
	Platform string `query:"platform"`
	Status   string `query:"status"`
}
