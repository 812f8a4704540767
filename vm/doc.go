// Package vm implements Garnet's method dispatch runtime.
//
// This package contains:
//   - Classes, modules and singleton classes with include/prepend/extend
//   - Ancestor (MRO) computation, cached per hierarchy epoch
//   - Copy-on-write method tables and the invalidation registry
//   - Polymorphic inline caches and the global method cache
//   - The dispatcher: visibility, super, method_missing and arity checks
//   - Core method tables for Kernel, Module, Class and the immediate classes
package vm
