// Package mataresit provides a Go client for the Mataresit external API,
// a receipt management service with claims, semantic search, spending
// analytics and teams.
//
// Every request is authenticated with an API key sent in the X-API-Key
// header. Responses use a {"success", "data", "message", "code"} envelope;
// methods return the decoded data payload or an *Error.
//
// Basic usage:
//
//	client, err := mataresit.New(os.Getenv("MATARESIT_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	receipt, err := client.CreateReceipt(ctx, &mataresit.Receipt{
//	    Merchant: "Starbucks Coffee",
//	    Date:     "2025-01-15",
//	    Total:    mataresit.NewAmount(15.50),
//	    Category: "Food & Dining",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Block until server-side processing finishes
//	receipt, err = client.WaitForProcessing(ctx, receipt.ID)
//
// Rate-limited calls (HTTP 429) are attempted up to three times with
// exponential backoff; see WithRetries. Large uploads can be chunked with
// BulkUpload.
package mataresit
