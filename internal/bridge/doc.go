// Package bridge connects a hub to a front-end over newline-delimited JSON.
//
// Every line is one envelope:
//
//	{"type":"request","data":{"request_id":1,"method":"GET","path":"/version"}}
//	{"type":"start_stream","data":{"kind":"traffic"}}
//	{"type":"stop_stream","data":{"kind":"traffic"}}
//	{"type":"cleanup"}
//
// The codec answers with response, traffic, log, stream_result, cleanup,
// and error envelopes in the same framing. Writes are serialized so
// envelopes never interleave.
package bridge
