package apiclient

import "context"

// AnalysisPath is the submission endpoint of the analysis API.
const AnalysisPath = "/analysis"

type submitRequest struct {
	Image string `json:"image"`
}

// SubmitAnalysis posts an image, encoded as a data URL, for analysis. The
// result arrives later as a record in the document store.
func (c *Client) SubmitAnalysis(ctx context.Context, token, dataURL string) (*Response, error) {
	return c.Post(ctx, token, AnalysisPath, submitRequest{Image: dataURL})
}
