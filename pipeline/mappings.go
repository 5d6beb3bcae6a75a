package pipeline

// FieldMap renames Sigma field names to SentinelOne PowerQuery columns
// for one logsource.
type FieldMap map[string]string

// builtinMappings are the stock per-category tables. Keys are Sigma
// logsource categories; values map taxonomy field names onto the
// SentinelOne Deep Visibility schema.
func builtinMappings() map[string]FieldMap {
	return map[string]FieldMap{
		"process_creation": {
			"Image":             "tgt.process.image.path",
			"CommandLine":       "tgt.process.cmdline",
			"ProcessId":         "tgt.process.pid",
			"User":              "tgt.process.user",
			"IntegrityLevel":    "tgt.process.integrityLevel",
			"OriginalFileName":  "tgt.process.image.originalFileName",
			"md5":               "tgt.process.image.md5",
			"sha1":              "tgt.process.image.sha1",
			"sha256":            "tgt.process.image.sha256",
			"ParentImage":       "src.process.image.path",
			"ParentCommandLine": "src.process.cmdline",
			"ParentProcessId":   "src.process.pid",
			"ParentUser":        "src.process.user",
		},
		"file_event": {
			"TargetFilename": "tgt.file.path",
			"SourceFilename": "tgt.file.oldPath",
			"Image":          "src.process.image.path",
			"CommandLine":    "src.process.cmdline",
			"User":           "src.process.user",
		},
		"network_connection": {
			"DestinationHostname": "url.address",
			"DestinationIp":       "dst.ip.address",
			"DestinationPort":     "dst.port.number",
			"SourceIp":            "src.ip.address",
			"SourcePort":          "src.port.number",
			"Protocol":            "event.network.protocolName",
			"Image":               "src.process.image.path",
			"User":                "src.process.user",
		},
		"registry_event": {
			"TargetObject": "registry.keyPath",
			"Details":      "registry.value",
			"Image":        "src.process.image.path",
			"EventType":    "event.type",
		},
		"dns_query": {
			"QueryName":   "event.dns.request",
			"QueryResult": "event.dns.response",
			"record_type": "event.dns.queryType",
			"Image":       "src.process.image.path",
		},
		"image_load": {
			"ImageLoaded": "module.path",
			"Image":       "src.process.image.path",
			"md5":         "module.md5",
			"sha1":        "module.sha1",
			"sha256":      "module.sha256",
		},
	}
}

// builtinGeneric is the fallback table applied when no category table
// has an entry for a field.
func builtinGeneric() FieldMap {
	return FieldMap{
		"Image":       "tgt.process.image.path",
		"CommandLine": "tgt.process.cmdline",
		"User":        "tgt.process.user",
		"md5":         "tgt.process.image.md5",
		"sha1":        "tgt.process.image.sha1",
		"sha256":      "tgt.process.image.sha256",
	}
}
