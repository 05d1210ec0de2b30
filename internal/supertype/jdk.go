package supertype

// JDK returns a hierarchy of frequently referenced java.base classes, for
// use behind a class path that does not include the platform classes.
func JDK() Static {
	s := Static{Root: {Name: Root}}
	s.AddInterface("java/io/Serializable")
	s.AddInterface("java/lang/Cloneable")
	s.AddInterface("java/lang/Comparable")
	s.AddInterface("java/lang/CharSequence")
	s.AddInterface("java/lang/Runnable")
	s.AddInterface("java/lang/AutoCloseable")
	s.AddInterface("java/io/Closeable", "java/lang/AutoCloseable")
	s.AddInterface("java/lang/Iterable")
	s.AddInterface("java/util/Collection", "java/lang/Iterable")
	s.AddInterface("java/util/List", "java/util/Collection")
	s.AddInterface("java/util/Set", "java/util/Collection")
	s.AddInterface("java/util/Map")
	s.AddInterface("java/util/RandomAccess")

	s.Add("java/lang/String", Root, "java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence")
	s.Add("java/lang/Class", Root, "java/io/Serializable")
	s.Add("java/lang/Number", Root, "java/io/Serializable")
	for _, n := range []string{"Byte", "Short", "Integer", "Long", "Float", "Double"} {
		s.Add("java/lang/"+n, "java/lang/Number", "java/lang/Comparable")
	}
	s.Add("java/lang/Boolean", Root, "java/io/Serializable", "java/lang/Comparable")
	s.Add("java/lang/Character", Root, "java/io/Serializable", "java/lang/Comparable")
	s.Add("java/lang/StringBuilder", Root, "java/io/Serializable", "java/lang/CharSequence")

	s.Add("java/lang/Throwable", Root, "java/io/Serializable")
	s.Add("java/lang/Exception", "java/lang/Throwable")
	s.Add("java/lang/Error", "java/lang/Throwable")
	s.Add("java/lang/RuntimeException", "java/lang/Exception")
	s.Add("java/lang/IllegalArgumentException", "java/lang/RuntimeException")
	s.Add("java/lang/IllegalStateException", "java/lang/RuntimeException")
	s.Add("java/lang/NullPointerException", "java/lang/RuntimeException")
	s.Add("java/lang/ArithmeticException", "java/lang/RuntimeException")
	s.Add("java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException")
	s.Add("java/lang/ClassCastException", "java/lang/RuntimeException")
	s.Add("java/io/IOException", "java/lang/Exception")

	s.Add("java/util/AbstractCollection", Root, "java/util/Collection")
	s.Add("java/util/AbstractList", "java/util/AbstractCollection", "java/util/List")
	s.Add("java/util/ArrayList", "java/util/AbstractList", "java/util/List", "java/util/RandomAccess", "java/lang/Cloneable", "java/io/Serializable")
	s.Add("java/util/AbstractSequentialList", "java/util/AbstractList")
	s.Add("java/util/LinkedList", "java/util/AbstractSequentialList", "java/util/List", "java/lang/Cloneable", "java/io/Serializable")
	s.Add("java/util/AbstractSet", "java/util/AbstractCollection", "java/util/Set")
	s.Add("java/util/HashSet", "java/util/AbstractSet", "java/util/Set", "java/lang/Cloneable", "java/io/Serializable")
	s.Add("java/util/AbstractMap", Root, "java/util/Map")
	s.Add("java/util/HashMap", "java/util/AbstractMap", "java/util/Map", "java/lang/Cloneable", "java/io/Serializable")
	return s
}
