// Package sdk is a Go client for the docqa HTTP API.
//
// A client uploads documents, lists and deletes them, runs similarity search
// inside one document and asks grounded questions:
//
//	client, _ := sdk.New("http://localhost:8080", sdk.WithAPIKey(os.Getenv("DOCQA_API_KEY")))
//
//	f, _ := os.Open("handbook.pdf")
//	res, _ := client.Upload(ctx, sdk.UploadRequest{Filename: "handbook.pdf", Content: f})
//
//	answer, err := client.Ask(ctx, res.DocumentID, "How many vacation days do I get?")
//	if errors.Is(err, sdk.ErrNotFound) {
//	    // the document has no chunks
//	}
//
// Failed requests return *APIError. It matches the re-exported sentinels with
// errors.Is and reports whether a retry may succeed.
package sdk
