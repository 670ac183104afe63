// Package hclmodel loads block-diagram models from HCL files into the
// in-memory model. It is the model-loading collaborator sitting in front of
// the engine: the engine itself never parses any interchange format.
//
// The vocabulary:
//
//	block "controller" {
//	  input "u" {
//	    type  = real
//	    start = 0
//	  }
//	  output "y" { type = real }
//
//	  instance "g" {
//	    type   = "Gain"
//	    params = { k = 2 }
//	  }
//
//	  connect {
//	    from = "u"
//	    to   = "g.u"
//	  }
//	  connect {
//	    from = "g.y"
//	    to   = "y"
//	  }
//	}
//
// An instance either names a registered elementary type (`type = "Gain"`,
// connectors stamped from the registry definition) or another block in the
// same file (`block = "zone"`), nesting composites.
package hclmodel
