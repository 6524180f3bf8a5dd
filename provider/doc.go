// Package provider contains the HTTP transport shared by gateway clients.
//
// ProviderHTTPClient sends JSON requests relative to a base URL, applies
// default headers and returns the raw response. Answers outside the 2xx range
// come back as *HTTPError together with the response, so callers can still
// read the error body:
//
//	client := provider.NewProviderHTTPClient(provider.CreateHTTPClientConfig(baseURL, 10*time.Second))
//	resp, err := client.SendJSON(ctx, &provider.HTTPRequest{
//	    Method:   http.MethodPost,
//	    Endpoint: "/mpesa/accountbalance/v2/query",
//	    Headers:  map[string]string{"Authorization": "Bearer " + token},
//	    Body:     payload,
//	})
//
// The client never retries.
package provider
