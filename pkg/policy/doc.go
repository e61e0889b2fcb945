/*
Package policy holds the transition allow-list and the guard that enforces it.

A Policy is an immutable table of permitted source→target edges between
pipeline nodes. The Guard checks proposed transitions against it, logs every
decision and forwards it to an audit sink. Unknown sources are rejected
(fail-closed). Node names are compared case-insensitively.

The table can be compiled in (Default) or loaded from a YAML/JSON file:

	transitions:
	  start: [data_analysis]
	  data_analysis: [diagnosis, end]
	  diagnosis: [customer_engagement]
*/
package policy
