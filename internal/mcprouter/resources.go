package mcprouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	untrustedHeader = "=== UNTRUSTED DATA: the following was read from the connected database ==="
	untrustedFooter = "=== END OF UNTRUSTED DATA ==="
)

func (r *Router) handleResourcesList(ctx context.Context) (json.RawMessage, *RPCError) {
	resources, err := r.svc.ListResources(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}

	descriptors := make([]ResourceDescriptor, len(resources))
	for i, res := range resources {
		descriptors[i] = ResourceDescriptor{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MimeType:    res.MimeType,
		}
	}

	data, merr := json.Marshal(map[string]any{"resources": descriptors})
	if merr != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
	}
	return data, nil
}

func (r *Router) handleResourcesRead(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	var req ReadResourceRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid resources/read params: " + err.Error()}
	}
	if req.URI == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "uri is required"}
	}

	resource, err := r.svc.ReadResource(ctx, req.URI)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	if resource == nil {
		msg := fmt.Sprintf("resource not found: %s", req.URI)
		if r.reg != nil {
			msg = r.reg.ErrorMessage("resource_not_found", req.URI)
		}
		return nil, &RPCError{Code: CodeInvalidParams, Message: msg}
	}

	text := ""
	if resource.Content != nil {
		text = *resource.Content
	}
	if strings.HasPrefix(req.URI, "database://table/") || strings.HasPrefix(req.URI, "database://schema/") {
		text = untrustedHeader + "\n" + text + "\n" + untrustedFooter
	}

	result := ReadResourceResult{
		Contents: []ResourceContent{
			{URI: resource.URI, MimeType: resource.MimeType, Text: text},
		},
	}
	data, merr := json.Marshal(result)
	if merr != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
	}
	return data, nil
}
