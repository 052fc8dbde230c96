package ast

// Visitor dispatches on the concrete type of every AST variant. Passes
// that only care about a handful of variants (e.g. the role validator)
// embed a NoopVisitor and override just the methods they need.
type Visitor interface {
	VisitNarrow(*Narrow)
	VisitLifting(*Lifting)
	VisitCopy(*Copy)
	VisitPack(*Pack)
	VisitUnpack(*Unpack)
	VisitChor(*ChorNode)
	VisitInst(*Inst)
	VisitAgree(*AgreeNode)
	VisitTypeExpr(*TypeExpr)

	VisitNoop(*Noop)
	VisitSend(*Send)
	VisitRecv(*Recv)
	VisitMakeProjection(*MakeProjection)

	VisitLet(*Let)
	VisitDo(*Do)
	VisitIf(*If)
	VisitCase(*Case)
	VisitFn(*Fn)
	VisitFnMethod(*FnMethod)
	VisitInvoke(*Invoke)
	VisitRecur(*Recur)
	VisitLocal(*Local)
	VisitVar(*Var)
	VisitTheVar(*TheVar)
	VisitQuote(*Quote)
	VisitConst(*Const)
	VisitWithMeta(*WithMeta)
	VisitVector(*VectorNode)
	VisitMap(*MapNode)
	VisitSet(*SetNode)
	VisitNew(*NewNode)
	VisitInstanceCall(*InstanceCall)
	VisitInstanceField(*InstanceField)
	VisitStaticCall(*StaticCall)
	VisitStaticField(*StaticField)
	VisitThrow(*Throw)
	VisitTry(*Try)
}

// NoopVisitor implements Visitor with empty bodies so callers can embed
// it and override only the methods relevant to their pass.
type NoopVisitor struct{}

func (NoopVisitor) VisitNarrow(*Narrow)             {}
func (NoopVisitor) VisitLifting(*Lifting)           {}
func (NoopVisitor) VisitCopy(*Copy)                 {}
func (NoopVisitor) VisitPack(*Pack)                 {}
func (NoopVisitor) VisitUnpack(*Unpack)             {}
func (NoopVisitor) VisitChor(*ChorNode)              {}
func (NoopVisitor) VisitInst(*Inst)                 {}
func (NoopVisitor) VisitAgree(*AgreeNode)           {}
func (NoopVisitor) VisitTypeExpr(*TypeExpr)         {}
func (NoopVisitor) VisitNoop(*Noop)                 {}
func (NoopVisitor) VisitSend(*Send)                 {}
func (NoopVisitor) VisitRecv(*Recv)                 {}
func (NoopVisitor) VisitMakeProjection(*MakeProjection) {}
func (NoopVisitor) VisitLet(*Let)                   {}
func (NoopVisitor) VisitDo(*Do)                     {}
func (NoopVisitor) VisitIf(*If)                     {}
func (NoopVisitor) VisitCase(*Case)                 {}
func (NoopVisitor) VisitFn(*Fn)                     {}
func (NoopVisitor) VisitFnMethod(*FnMethod)         {}
func (NoopVisitor) VisitInvoke(*Invoke)             {}
func (NoopVisitor) VisitRecur(*Recur)               {}
func (NoopVisitor) VisitLocal(*Local)               {}
func (NoopVisitor) VisitVar(*Var)                   {}
func (NoopVisitor) VisitTheVar(*TheVar)             {}
func (NoopVisitor) VisitQuote(*Quote)               {}
func (NoopVisitor) VisitConst(*Const)               {}
func (NoopVisitor) VisitWithMeta(*WithMeta)         {}
func (NoopVisitor) VisitVector(*VectorNode)         {}
func (NoopVisitor) VisitMap(*MapNode)               {}
func (NoopVisitor) VisitSet(*SetNode)               {}
func (NoopVisitor) VisitNew(*NewNode)               {}
func (NoopVisitor) VisitInstanceCall(*InstanceCall) {}
func (NoopVisitor) VisitInstanceField(*InstanceField) {}
func (NoopVisitor) VisitStaticCall(*StaticCall)     {}
func (NoopVisitor) VisitStaticField(*StaticField)   {}
func (NoopVisitor) VisitThrow(*Throw)               {}
func (NoopVisitor) VisitTry(*Try)                   {}
