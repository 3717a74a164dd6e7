// Package inbox runs videos dropped into a watch folder through the
// subtitle pipeline.
//
// Files are picked up once they have been quiet for a settle period and are
// processed one at a time. Each source is then moved to done/ or failed/
// with a JSON report beside it holding the run ID and the published URL or
// the failing stage.
package inbox
