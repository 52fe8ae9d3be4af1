// Package async provides bounded parallel execution with error collection.
//
// A [Pool] is a weighted semaphore shared by every fan-out of one service, so
// the total number of in-flight provider calls stays bounded no matter how
// many operations run at once. [RunEach] runs named tasks and reports each
// outcome; [Map] is the all-or-nothing ordered variant used for list
// aggregation; [MapEach] keeps per-item errors for best-effort callers.
package async
