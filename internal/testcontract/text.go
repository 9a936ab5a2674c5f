package testcontract

// SetDataText is the text format rendition of SetData: main stores "bar"
// under "foo" with the same instructions.
const SetDataText = `(module
  (import "massa" "assembly_script_set_data" (func $set_data (param i32 i32)))
  (memory 1)
  (export "memory" (memory 0))
  (data (i32.const 8) "\03\00\00\00foo")
  (data (i32.const 16) "\03\00\00\00bar")
  (func (export "main")
    (call $set_data (i32.const 12) (i32.const 20))))
`
