package client

import (
	"mime"
	"slices"
	"strings"
)

// validateResponse applies the request's opt-in acceptance rules. Status
// codes are checked before content types.
func validateResponse(req *Request, resp *Response) error {
	if resp == nil {
		return nil
	}
	if len(req.AcceptableStatusCodes) > 0 && !slices.Contains(req.AcceptableStatusCodes, resp.StatusCode) {
		return &ResponseValidationError{
			Reason:                ReasonUnacceptableStatusCode,
			AcceptableStatusCodes: slices.Clone(req.AcceptableStatusCodes),
			StatusCode:            resp.StatusCode,
		}
	}
	if len(req.AcceptableContentTypes) == 0 {
		return nil
	}

	raw := resp.Header.Get("Content-Type")
	if raw == "" {
		if slices.Contains(req.AcceptableContentTypes, "*/*") {
			return nil
		}
		return &ResponseValidationError{
			Reason:                 ReasonMissingContentType,
			AcceptableContentTypes: slices.Clone(req.AcceptableContentTypes),
		}
	}

	mediaType := mediaTypeOf(raw)
	for _, acceptable := range req.AcceptableContentTypes {
		if mediaTypeMatches(strings.ToLower(acceptable), mediaType) {
			return nil
		}
	}
	return &ResponseValidationError{
		Reason:                 ReasonUnacceptableContentType,
		AcceptableContentTypes: slices.Clone(req.AcceptableContentTypes),
		ContentType:            raw,
	}
}

func mediaTypeOf(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// mediaTypeMatches matches "type/subtype" against a pattern that may use "*"
// for either part.
func mediaTypeMatches(pattern, mediaType string) bool {
	if pattern == "*/*" || pattern == "*" {
		return true
	}
	pType, pSub, ok := strings.Cut(pattern, "/")
	if !ok {
		return false
	}
	mType, mSub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return false
	}
	if pType != "*" && pType != mType {
		return false
	}
	return pSub == "*" || pSub == mSub
}
