// Package stub provides canned responses that stand in for real network calls.
//
// A stub is registered under a RequestKey (URL, method and optional JSON-typed
// parameters) and returned by Store.Lookup whenever an equal key is presented.
// Key equality is value based: nested mappings compare regardless of member
// order, arrays compare element by element, and numbers compare by numeric value.
//
// Key types:
//
//   - RequestKey: the identity used to match a request against a stub
//   - ResponseStub: status code, headers, optional body or an Error triple
//   - Entry: a (RequestKey, ResponseStub) pair as read from a definition file
//   - Store: thread-safe key to stub mapping with bulk population from files
//
// # Definition Files
//
// A definition file is a top-level array of stub objects:
//
//	[
//	  {
//	    "url": "/method/text",
//	    "method": "POST",
//	    "params": {"some": 4545, "array": [1, 2, 3]},
//	    "responseStub": {
//	      "statusCode": 200,
//	      "headers": {"Content-Type": "plain/text"},
//	      "body": "text"
//	    }
//	  }
//	]
//
// Load reads such a file and fails with *FileNotExistsError when the path
// cannot be read, or *DecodingError when the content is malformed. Files with a
// .yaml or .yml extension are decoded as YAML into the same data model.
//
// # Transport
//
// NewTransport wraps a Store in an http.RoundTripper so that a plain
// *http.Client can be served entirely from stubs.
package stub
