package comfy

import (
	"encoding/json"
	"sort"
)

// ImageResult locates one finished image on the render backend.
type ImageResult struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ExtractImage digs a finished image reference for jobID out of a loosely
// structured history payload.  Observed response shapes: an entry object
// itself, a map keyed by job id, the same map nested under "history", or an
// array of entries.  Search order:
//
//	(a) the body itself, when it carries "outputs" and its job id is absent
//	    or matches
//	(b) the entry keyed by jobID
//	(c) the entry keyed by jobID under a nested "history" object
//	(d) array elements or map values whose own job id is absent or matches
//
// The first image found wins; nil means no image yet (still running).
func ExtractImage(body []byte, jobID string) *ImageResult {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}

	switch t := root.(type) {
	case map[string]interface{}:
		if img := imageFromEntry(t, jobID); img != nil {
			return img
		}
		if entry, ok := t[jobID].(map[string]interface{}); ok {
			if img := imageFromEntry(entry, jobID); img != nil {
				return img
			}
		}
		if hist, ok := t["history"].(map[string]interface{}); ok {
			if entry, ok := hist[jobID].(map[string]interface{}); ok {
				if img := imageFromEntry(entry, jobID); img != nil {
					return img
				}
			}
		}
		// full-history fallback, only when the payload has no entry keyed
		// by our job id at all
		if _, keyed := t[jobID]; !keyed {
			for _, k := range sortedKeys(t) {
				if entry, ok := t[k].(map[string]interface{}); ok {
					if img := imageFromEntry(entry, jobID); img != nil {
						return img
					}
				}
			}
		}
	case []interface{}:
		for _, e := range t {
			if entry, ok := e.(map[string]interface{}); ok {
				if img := imageFromEntry(entry, jobID); img != nil {
					return img
				}
			}
		}
	}
	return nil
}

// imageFromEntry scans one history entry for an image reference.  An entry
// whose own job id disagrees with ours is never a match.
func imageFromEntry(entry map[string]interface{}, jobID string) *ImageResult {
	if pid, ok := entry["prompt_id"].(string); ok && pid != jobID {
		return nil
	}
	for _, field := range []string{"outputs", "output", "data"} {
		groups, ok := entry[field].(map[string]interface{})
		if !ok {
			continue
		}
		for _, nodeKey := range sortedKeys(groups) {
			group, ok := groups[nodeKey].(map[string]interface{})
			if !ok {
				continue
			}
			for _, outKey := range sortedKeys(group) {
				if img := imageFromList(group[outKey]); img != nil {
					return img
				}
			}
		}
	}
	return nil
}

func imageFromList(v interface{}) *ImageResult {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		filename, ok := m["filename"].(string)
		if !ok || filename == "" {
			continue
		}
		img := &ImageResult{Filename: filename}
		img.Subfolder, _ = m["subfolder"].(string)
		img.Type, _ = m["type"].(string)
		return img
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
