// Package builtin provides the template functions available in apicheck test
// files.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(layout?), timestamp(), timestampMs()
//   - date(offsetDays?, layout?), dateMDY(offsetDays?)
//   - random(min, max), randomString(length), randomEmail(), randomPhone()
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), upper(value), lower(value)
//   - env(name, default?)
//
// Functions are invoked with the ${name(args)} syntax.
package builtin
