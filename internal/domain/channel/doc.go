// Package channel contains the sales-channel synchronization domain:
// the Channel aggregate, the ChannelAdapter port implemented once per
// external platform, the durable sync state mappings that make retries
// idempotent, and the audit records written for every conflict
// resolution and webhook delivery.
//
// Following the Ports & Adapters pattern, only interfaces and pure
// domain types live here; concrete adapters, repositories and the rate
// limiter live in the infrastructure layer.
package channel
