// Package runtime interprets a workflow design: it threads one record through
// the pipeline nodes, merges their partial updates and asks the transition
// guard before every edge, including edges into END.
package runtime
