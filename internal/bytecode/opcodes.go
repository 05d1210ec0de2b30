package bytecode

// Opcode is a JVM instruction opcode.
type Opcode uint8

// Opcodes.
const (
	Nop             Opcode = 0x00
	AconstNull      Opcode = 0x01
	IconstM1        Opcode = 0x02
	Iconst0         Opcode = 0x03
	Iconst1         Opcode = 0x04
	Iconst2         Opcode = 0x05
	Iconst3         Opcode = 0x06
	Iconst4         Opcode = 0x07
	Iconst5         Opcode = 0x08
	Lconst0         Opcode = 0x09
	Lconst1         Opcode = 0x0a
	Fconst0         Opcode = 0x0b
	Fconst1         Opcode = 0x0c
	Fconst2         Opcode = 0x0d
	Dconst0         Opcode = 0x0e
	Dconst1         Opcode = 0x0f
	Bipush          Opcode = 0x10
	Sipush          Opcode = 0x11
	Ldc             Opcode = 0x12
	LdcW            Opcode = 0x13
	Ldc2W           Opcode = 0x14
	Iload           Opcode = 0x15
	Lload           Opcode = 0x16
	Fload           Opcode = 0x17
	Dload           Opcode = 0x18
	Aload           Opcode = 0x19
	Iload0          Opcode = 0x1a
	Iload1          Opcode = 0x1b
	Iload2          Opcode = 0x1c
	Iload3          Opcode = 0x1d
	Lload0          Opcode = 0x1e
	Lload1          Opcode = 0x1f
	Lload2          Opcode = 0x20
	Lload3          Opcode = 0x21
	Fload0          Opcode = 0x22
	Fload1          Opcode = 0x23
	Fload2          Opcode = 0x24
	Fload3          Opcode = 0x25
	Dload0          Opcode = 0x26
	Dload1          Opcode = 0x27
	Dload2          Opcode = 0x28
	Dload3          Opcode = 0x29
	Aload0          Opcode = 0x2a
	Aload1          Opcode = 0x2b
	Aload2          Opcode = 0x2c
	Aload3          Opcode = 0x2d
	Iaload          Opcode = 0x2e
	Laload          Opcode = 0x2f
	Faload          Opcode = 0x30
	Daload          Opcode = 0x31
	Aaload          Opcode = 0x32
	Baload          Opcode = 0x33
	Caload          Opcode = 0x34
	Saload          Opcode = 0x35
	Istore          Opcode = 0x36
	Lstore          Opcode = 0x37
	Fstore          Opcode = 0x38
	Dstore          Opcode = 0x39
	Astore          Opcode = 0x3a
	Istore0         Opcode = 0x3b
	Istore1         Opcode = 0x3c
	Istore2         Opcode = 0x3d
	Istore3         Opcode = 0x3e
	Lstore0         Opcode = 0x3f
	Lstore1         Opcode = 0x40
	Lstore2         Opcode = 0x41
	Lstore3         Opcode = 0x42
	Fstore0         Opcode = 0x43
	Fstore1         Opcode = 0x44
	Fstore2         Opcode = 0x45
	Fstore3         Opcode = 0x46
	Dstore0         Opcode = 0x47
	Dstore1         Opcode = 0x48
	Dstore2         Opcode = 0x49
	Dstore3         Opcode = 0x4a
	Astore0         Opcode = 0x4b
	Astore1         Opcode = 0x4c
	Astore2         Opcode = 0x4d
	Astore3         Opcode = 0x4e
	Iastore         Opcode = 0x4f
	Lastore         Opcode = 0x50
	Fastore         Opcode = 0x51
	Dastore         Opcode = 0x52
	Aastore         Opcode = 0x53
	Bastore         Opcode = 0x54
	Castore         Opcode = 0x55
	Sastore         Opcode = 0x56
	Pop             Opcode = 0x57
	Pop2            Opcode = 0x58
	Dup             Opcode = 0x59
	DupX1           Opcode = 0x5a
	DupX2           Opcode = 0x5b
	Dup2            Opcode = 0x5c
	Dup2X1          Opcode = 0x5d
	Dup2X2          Opcode = 0x5e
	Swap            Opcode = 0x5f
	Iadd            Opcode = 0x60
	Ladd            Opcode = 0x61
	Fadd            Opcode = 0x62
	Dadd            Opcode = 0x63
	Isub            Opcode = 0x64
	Lsub            Opcode = 0x65
	Fsub            Opcode = 0x66
	Dsub            Opcode = 0x67
	Imul            Opcode = 0x68
	Lmul            Opcode = 0x69
	Fmul            Opcode = 0x6a
	Dmul            Opcode = 0x6b
	Idiv            Opcode = 0x6c
	Ldiv            Opcode = 0x6d
	Fdiv            Opcode = 0x6e
	Ddiv            Opcode = 0x6f
	Irem            Opcode = 0x70
	Lrem            Opcode = 0x71
	Frem            Opcode = 0x72
	Drem            Opcode = 0x73
	Ineg            Opcode = 0x74
	Lneg            Opcode = 0x75
	Fneg            Opcode = 0x76
	Dneg            Opcode = 0x77
	Ishl            Opcode = 0x78
	Lshl            Opcode = 0x79
	Ishr            Opcode = 0x7a
	Lshr            Opcode = 0x7b
	Iushr           Opcode = 0x7c
	Lushr           Opcode = 0x7d
	Iand            Opcode = 0x7e
	Land            Opcode = 0x7f
	Ior             Opcode = 0x80
	Lor             Opcode = 0x81
	Ixor            Opcode = 0x82
	Lxor            Opcode = 0x83
	Iinc            Opcode = 0x84
	I2l             Opcode = 0x85
	I2f             Opcode = 0x86
	I2d             Opcode = 0x87
	L2i             Opcode = 0x88
	L2f             Opcode = 0x89
	L2d             Opcode = 0x8a
	F2i             Opcode = 0x8b
	F2l             Opcode = 0x8c
	F2d             Opcode = 0x8d
	D2i             Opcode = 0x8e
	D2l             Opcode = 0x8f
	D2f             Opcode = 0x90
	I2b             Opcode = 0x91
	I2c             Opcode = 0x92
	I2s             Opcode = 0x93
	Lcmp            Opcode = 0x94
	Fcmpl           Opcode = 0x95
	Fcmpg           Opcode = 0x96
	Dcmpl           Opcode = 0x97
	Dcmpg           Opcode = 0x98
	Ifeq            Opcode = 0x99
	Ifne            Opcode = 0x9a
	Iflt            Opcode = 0x9b
	Ifge            Opcode = 0x9c
	Ifgt            Opcode = 0x9d
	Ifle            Opcode = 0x9e
	IfIcmpeq        Opcode = 0x9f
	IfIcmpne        Opcode = 0xa0
	IfIcmplt        Opcode = 0xa1
	IfIcmpge        Opcode = 0xa2
	IfIcmpgt        Opcode = 0xa3
	IfIcmple        Opcode = 0xa4
	IfAcmpeq        Opcode = 0xa5
	IfAcmpne        Opcode = 0xa6
	Goto            Opcode = 0xa7
	Jsr             Opcode = 0xa8
	Ret             Opcode = 0xa9
	TableSwitch     Opcode = 0xaa
	LookupSwitch    Opcode = 0xab
	Ireturn         Opcode = 0xac
	Lreturn         Opcode = 0xad
	Freturn         Opcode = 0xae
	Dreturn         Opcode = 0xaf
	Areturn         Opcode = 0xb0
	Return          Opcode = 0xb1
	GetStatic       Opcode = 0xb2
	PutStatic       Opcode = 0xb3
	GetField        Opcode = 0xb4
	PutField        Opcode = 0xb5
	InvokeVirtual   Opcode = 0xb6
	InvokeSpecial   Opcode = 0xb7
	InvokeStatic    Opcode = 0xb8
	InvokeInterface Opcode = 0xb9
	InvokeDynamic   Opcode = 0xba
	New             Opcode = 0xbb
	NewArray        Opcode = 0xbc
	ANewArray       Opcode = 0xbd
	ArrayLength     Opcode = 0xbe
	AThrow          Opcode = 0xbf
	CheckCast       Opcode = 0xc0
	InstanceOf      Opcode = 0xc1
	MonitorEnter    Opcode = 0xc2
	MonitorExit     Opcode = 0xc3
	Wide            Opcode = 0xc4
	MultiANewArray  Opcode = 0xc5
	IfNull          Opcode = 0xc6
	IfNonNull       Opcode = 0xc7
	GotoW           Opcode = 0xc8
	JsrW            Opcode = 0xc9
)

// Kind groups opcodes by operand shape.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInsn
	KindInt
	KindLdc
	KindVar
	KindIinc
	KindJump
	KindTableSwitch
	KindLookupSwitch
	KindField
	KindMethod
	KindInvokeDynamic
	KindType
	KindMultiANewArray
	KindWide
)

type opInfo struct {
	name string
	kind Kind
}

var opTable = [256]opInfo{
	Nop:             {"nop", KindInsn},
	AconstNull:      {"aconst_null", KindInsn},
	IconstM1:        {"iconst_m1", KindInsn},
	Iconst0:         {"iconst_0", KindInsn},
	Iconst1:         {"iconst_1", KindInsn},
	Iconst2:         {"iconst_2", KindInsn},
	Iconst3:         {"iconst_3", KindInsn},
	Iconst4:         {"iconst_4", KindInsn},
	Iconst5:         {"iconst_5", KindInsn},
	Lconst0:         {"lconst_0", KindInsn},
	Lconst1:         {"lconst_1", KindInsn},
	Fconst0:         {"fconst_0", KindInsn},
	Fconst1:         {"fconst_1", KindInsn},
	Fconst2:         {"fconst_2", KindInsn},
	Dconst0:         {"dconst_0", KindInsn},
	Dconst1:         {"dconst_1", KindInsn},
	Bipush:          {"bipush", KindInt},
	Sipush:          {"sipush", KindInt},
	Ldc:             {"ldc", KindLdc},
	LdcW:            {"ldc_w", KindLdc},
	Ldc2W:           {"ldc2_w", KindLdc},
	Iload:           {"iload", KindVar},
	Lload:           {"lload", KindVar},
	Fload:           {"fload", KindVar},
	Dload:           {"dload", KindVar},
	Aload:           {"aload", KindVar},
	Iload0:          {"iload_0", KindVar},
	Iload1:          {"iload_1", KindVar},
	Iload2:          {"iload_2", KindVar},
	Iload3:          {"iload_3", KindVar},
	Lload0:          {"lload_0", KindVar},
	Lload1:          {"lload_1", KindVar},
	Lload2:          {"lload_2", KindVar},
	Lload3:          {"lload_3", KindVar},
	Fload0:          {"fload_0", KindVar},
	Fload1:          {"fload_1", KindVar},
	Fload2:          {"fload_2", KindVar},
	Fload3:          {"fload_3", KindVar},
	Dload0:          {"dload_0", KindVar},
	Dload1:          {"dload_1", KindVar},
	Dload2:          {"dload_2", KindVar},
	Dload3:          {"dload_3", KindVar},
	Aload0:          {"aload_0", KindVar},
	Aload1:          {"aload_1", KindVar},
	Aload2:          {"aload_2", KindVar},
	Aload3:          {"aload_3", KindVar},
	Iaload:          {"iaload", KindInsn},
	Laload:          {"laload", KindInsn},
	Faload:          {"faload", KindInsn},
	Daload:          {"daload", KindInsn},
	Aaload:          {"aaload", KindInsn},
	Baload:          {"baload", KindInsn},
	Caload:          {"caload", KindInsn},
	Saload:          {"saload", KindInsn},
	Istore:          {"istore", KindVar},
	Lstore:          {"lstore", KindVar},
	Fstore:          {"fstore", KindVar},
	Dstore:          {"dstore", KindVar},
	Astore:          {"astore", KindVar},
	Istore0:         {"istore_0", KindVar},
	Istore1:         {"istore_1", KindVar},
	Istore2:         {"istore_2", KindVar},
	Istore3:         {"istore_3", KindVar},
	Lstore0:         {"lstore_0", KindVar},
	Lstore1:         {"lstore_1", KindVar},
	Lstore2:         {"lstore_2", KindVar},
	Lstore3:         {"lstore_3", KindVar},
	Fstore0:         {"fstore_0", KindVar},
	Fstore1:         {"fstore_1", KindVar},
	Fstore2:         {"fstore_2", KindVar},
	Fstore3:         {"fstore_3", KindVar},
	Dstore0:         {"dstore_0", KindVar},
	Dstore1:         {"dstore_1", KindVar},
	Dstore2:         {"dstore_2", KindVar},
	Dstore3:         {"dstore_3", KindVar},
	Astore0:         {"astore_0", KindVar},
	Astore1:         {"astore_1", KindVar},
	Astore2:         {"astore_2", KindVar},
	Astore3:         {"astore_3", KindVar},
	Iastore:         {"iastore", KindInsn},
	Lastore:         {"lastore", KindInsn},
	Fastore:         {"fastore", KindInsn},
	Dastore:         {"dastore", KindInsn},
	Aastore:         {"aastore", KindInsn},
	Bastore:         {"bastore", KindInsn},
	Castore:         {"castore", KindInsn},
	Sastore:         {"sastore", KindInsn},
	Pop:             {"pop", KindInsn},
	Pop2:            {"pop2", KindInsn},
	Dup:             {"dup", KindInsn},
	DupX1:           {"dup_x1", KindInsn},
	DupX2:           {"dup_x2", KindInsn},
	Dup2:            {"dup2", KindInsn},
	Dup2X1:          {"dup2_x1", KindInsn},
	Dup2X2:          {"dup2_x2", KindInsn},
	Swap:            {"swap", KindInsn},
	Iadd:            {"iadd", KindInsn},
	Ladd:            {"ladd", KindInsn},
	Fadd:            {"fadd", KindInsn},
	Dadd:            {"dadd", KindInsn},
	Isub:            {"isub", KindInsn},
	Lsub:            {"lsub", KindInsn},
	Fsub:            {"fsub", KindInsn},
	Dsub:            {"dsub", KindInsn},
	Imul:            {"imul", KindInsn},
	Lmul:            {"lmul", KindInsn},
	Fmul:            {"fmul", KindInsn},
	Dmul:            {"dmul", KindInsn},
	Idiv:            {"idiv", KindInsn},
	Ldiv:            {"ldiv", KindInsn},
	Fdiv:            {"fdiv", KindInsn},
	Ddiv:            {"ddiv", KindInsn},
	Irem:            {"irem", KindInsn},
	Lrem:            {"lrem", KindInsn},
	Frem:            {"frem", KindInsn},
	Drem:            {"drem", KindInsn},
	Ineg:            {"ineg", KindInsn},
	Lneg:            {"lneg", KindInsn},
	Fneg:            {"fneg", KindInsn},
	Dneg:            {"dneg", KindInsn},
	Ishl:            {"ishl", KindInsn},
	Lshl:            {"lshl", KindInsn},
	Ishr:            {"ishr", KindInsn},
	Lshr:            {"lshr", KindInsn},
	Iushr:           {"iushr", KindInsn},
	Lushr:           {"lushr", KindInsn},
	Iand:            {"iand", KindInsn},
	Land:            {"land", KindInsn},
	Ior:             {"ior", KindInsn},
	Lor:             {"lor", KindInsn},
	Ixor:            {"ixor", KindInsn},
	Lxor:            {"lxor", KindInsn},
	Iinc:            {"iinc", KindIinc},
	I2l:             {"i2l", KindInsn},
	I2f:             {"i2f", KindInsn},
	I2d:             {"i2d", KindInsn},
	L2i:             {"l2i", KindInsn},
	L2f:             {"l2f", KindInsn},
	L2d:             {"l2d", KindInsn},
	F2i:             {"f2i", KindInsn},
	F2l:             {"f2l", KindInsn},
	F2d:             {"f2d", KindInsn},
	D2i:             {"d2i", KindInsn},
	D2l:             {"d2l", KindInsn},
	D2f:             {"d2f", KindInsn},
	I2b:             {"i2b", KindInsn},
	I2c:             {"i2c", KindInsn},
	I2s:             {"i2s", KindInsn},
	Lcmp:            {"lcmp", KindInsn},
	Fcmpl:           {"fcmpl", KindInsn},
	Fcmpg:           {"fcmpg", KindInsn},
	Dcmpl:           {"dcmpl", KindInsn},
	Dcmpg:           {"dcmpg", KindInsn},
	Ifeq:            {"ifeq", KindJump},
	Ifne:            {"ifne", KindJump},
	Iflt:            {"iflt", KindJump},
	Ifge:            {"ifge", KindJump},
	Ifgt:            {"ifgt", KindJump},
	Ifle:            {"ifle", KindJump},
	IfIcmpeq:        {"if_icmpeq", KindJump},
	IfIcmpne:        {"if_icmpne", KindJump},
	IfIcmplt:        {"if_icmplt", KindJump},
	IfIcmpge:        {"if_icmpge", KindJump},
	IfIcmpgt:        {"if_icmpgt", KindJump},
	IfIcmple:        {"if_icmple", KindJump},
	IfAcmpeq:        {"if_acmpeq", KindJump},
	IfAcmpne:        {"if_acmpne", KindJump},
	Goto:            {"goto", KindJump},
	Jsr:             {"jsr", KindJump},
	Ret:             {"ret", KindVar},
	TableSwitch:     {"tableswitch", KindTableSwitch},
	LookupSwitch:    {"lookupswitch", KindLookupSwitch},
	Ireturn:         {"ireturn", KindInsn},
	Lreturn:         {"lreturn", KindInsn},
	Freturn:         {"freturn", KindInsn},
	Dreturn:         {"dreturn", KindInsn},
	Areturn:         {"areturn", KindInsn},
	Return:          {"return", KindInsn},
	GetStatic:       {"getstatic", KindField},
	PutStatic:       {"putstatic", KindField},
	GetField:        {"getfield", KindField},
	PutField:        {"putfield", KindField},
	InvokeVirtual:   {"invokevirtual", KindMethod},
	InvokeSpecial:   {"invokespecial", KindMethod},
	InvokeStatic:    {"invokestatic", KindMethod},
	InvokeInterface: {"invokeinterface", KindMethod},
	InvokeDynamic:   {"invokedynamic", KindInvokeDynamic},
	New:             {"new", KindType},
	NewArray:        {"newarray", KindInt},
	ANewArray:       {"anewarray", KindType},
	ArrayLength:     {"arraylength", KindInsn},
	AThrow:          {"athrow", KindInsn},
	CheckCast:       {"checkcast", KindType},
	InstanceOf:      {"instanceof", KindType},
	MonitorEnter:    {"monitorenter", KindInsn},
	MonitorExit:     {"monitorexit", KindInsn},
	Wide:            {"wide", KindWide},
	MultiANewArray:  {"multianewarray", KindMultiANewArray},
	IfNull:          {"ifnull", KindJump},
	IfNonNull:       {"ifnonnull", KindJump},
	GotoW:           {"goto_w", KindJump},
	JsrW:            {"jsr_w", KindJump},
}

// Name returns the mnemonic of op.
func (op Opcode) Name() string {
	if n := opTable[op].name; n != "" {
		return n
	}
	return "invalid"
}

// Kind returns the operand shape of op.
func (op Opcode) Kind() Kind { return opTable[op].kind }
