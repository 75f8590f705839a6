package xlrd

// parseNode is one node of a parsed formula. Children are the operands
// of tok in evaluation order.
type parseNode struct {
	tok  Ptg
	args []*parseNode
	def  *FuncDef
}

// rootClass is the operand class a formula of the given type must
// produce.
func rootClass(fmlaType int) OperandClass {
	switch fmlaType {
	case FMLA_TYPE_NAME:
		return ClassRef
	case FMLA_TYPE_ARRAY:
		return ClassArray
	}
	return ClassValue
}

// assignClasses sets the operand class of every classed token under n.
func assignClasses(n *parseNode, fmlaType int) {
	transformNode(n, rootClass(fmlaType), false)
}

func isSimpleValueFunc(n *parseNode) bool {
	if n.def == nil || n.def.AddIn || n.def.Return != ClassValue {
		return false
	}
	for i := range n.args {
		if n.def.ParamClass(i) != ClassValue {
			return false
		}
	}
	return true
}

func transformNode(n *parseNode, desired OperandClass, forceArray bool) {
	if isSimpleValueFunc(n) {
		local := desired == ClassArray
		for _, a := range n.args {
			transformNode(a, desired, local)
		}
		cp := n.tok.(ClassedPtg)
		if forceArray || desired == ClassArray {
			cp.SetClass(ClassArray)
		} else {
			cp.SetClass(ClassValue)
		}
		return
	}
	if n.def != nil {
		transformFunction(n, desired, forceArray)
		return
	}
	switch t := n.tok.(type) {
	case *OpPtg:
		switch t.Op {
		case tUnion, tIsect, tRange, tParen:
			// reference operators and parentheses keep the class asked for
			for _, a := range n.args {
				transformNode(a, desired, forceArray)
			}
			return
		}
		local := desired
		if local == ClassRef {
			local = ClassValue
		}
		for _, a := range n.args {
			transformNode(a, local, forceArray)
		}
		return
	case *MemPtg:
		local := desired
		if local == ClassRef {
			local = ClassValue
		}
		for _, a := range n.args {
			transformNode(a, local, forceArray)
		}
		return
	case ClassedPtg:
		t.SetClass(transformClass(t.Class(), desired, forceArray))
	}
}

func transformClass(current, desired OperandClass, forceArray bool) OperandClass {
	switch desired {
	case ClassValue:
		if forceArray {
			return ClassArray
		}
		return ClassValue
	case ClassArray:
		return ClassArray
	case ClassRef:
		if forceArray {
			return ClassRef
		}
		return current
	}
	return current
}

func transformFunction(n *parseNode, desired OperandClass, forceArray bool) {
	cp := n.tok.(ClassedPtg)
	ret := n.def.Return
	var local bool
	switch {
	case forceArray:
		switch ret {
		case ClassRef:
			if desired == ClassRef {
				cp.SetClass(ClassRef)
			} else {
				cp.SetClass(ClassArray)
			}
		case ClassArray:
			cp.SetClass(ClassArray)
		default:
			cp.SetClass(ClassArray)
			local = true
		}
	case ret == desired:
		cp.SetClass(ret)
	case desired == ClassValue:
		cp.SetClass(ClassValue)
	case desired == ClassArray:
		if ret == ClassRef {
			cp.SetClass(ClassRef)
		} else {
			cp.SetClass(ClassArray)
		}
		local = ret == ClassValue
	default:
		// a reference is wanted from a function that returns values
		cp.SetClass(ret)
	}

	args := n.args
	if n.def.AddIn && len(args) > 0 {
		// the tNameX naming the add-in function stays a reference
		if x, ok := args[0].tok.(ClassedPtg); ok {
			x.SetClass(ClassRef)
		}
		args = args[1:]
	}
	for i, a := range args {
		transformNode(a, n.def.ParamClass(i), local)
	}
}
